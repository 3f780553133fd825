// Package jobs keeps the shell's table of jobs.
//
// A job is created for every accepted command line and never removed; Done
// jobs stay listed. State changes are observed by polling the job's unit,
// either blocking for the foreground job or without blocking during a sweep.
// A Notifier turns SIGCHLD into a flag the sweep consumes, so no state is
// touched from signal context.
package jobs
