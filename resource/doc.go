// Package resource bounds the work a facet build and its persistence may do.
//
// A Controller hands out build slots (a weighted semaphore) and throttles
// facet file IO to a byte rate. Builders and stores accept an optional
// *Controller; a nil controller means unlimited.
package resource
