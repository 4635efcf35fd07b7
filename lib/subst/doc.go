// Package subst provides the two small text-transformation helpers that
// sit on top of lib/filecache: detecting a file's line-ending style, and
// re-encoding+normalizing a string the way Subversion's keyword/EOL
// translation layer does for property values. Neither helper attempts
// the full translation pipeline (keyword expansion, EOL translation of
// whole working files); that machinery is out of scope here. What
// remains is grounded directly in svn_subst_translate_string2's
// observable behavior.
package subst
