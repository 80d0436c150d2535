// Package execution schedules and runs the deferred completion of tasks.
//
// A task that enters the Running state is submitted with a duration. The
// job dispatcher holds it until the duration has elapsed and then calls
// back into the Scheduler, which moves the task to Completed if, and only
// if, it is still Running at that moment.
package execution
