// Package interceptor holds the stages composed around every model call.
package interceptor

// Stage priorities. Lower values run earlier and wrap outermost.
const (
	PriorityCancellation = 0
	PriorityMemory       = 100
	PriorityHistory      = 200
	PriorityRetrieval    = 300
)
