package task

import "github.com/pkg/errors"

// ErrCancelled is returned by the internal worker cancel function once
// the root has been told to terminate, surfacing through the nearest
// process function as a regular error.
var ErrCancelled = errors.New("task: cancelled")

// errArenaMisuse is returned by Add/AddSimilar when the process arena
// handed in was already used for another sub-task, or was created for
// a different parent.
var errArenaMisuse = errors.New("task: process arena used for the wrong task, or reused")

// errTaskInvariant guards linkNewTask against a newly constructed task
// that doesn't look the way a brand new task should - a scheduler bug,
// never something a caller can trigger.
var errTaskInvariant = errors.New("task: new task invariant violation")

// errUnreadyTask guards unreadyTask against being called on a task
// that is not actually at the head of its own sub-tree, or that still
// has sub-tasks of its own - both would indicate a scheduler bug
// rather than anything a caller did.
var errUnreadyTask = errors.New("task: unready_task invariant violation")
