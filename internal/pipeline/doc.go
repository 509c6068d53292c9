// Package pipeline chains the stages for one lane and runs lanes and peak
// fits on bounded worker pools.
//
//	extract -> filter -> detect -> integrate -> fit
//
// Every call takes its configuration explicitly. Concurrent runs share only
// read-only inputs (the intensity field and the configuration) and write
// their results into distinct slots, so the output does not depend on
// scheduling.
package pipeline
