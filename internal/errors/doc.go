// Package errors provides coded, actionable errors for the joint command
// line.
//
// Errors raised while loading configuration or starting sessions carry a
// code (e.g. "J101"), a short message, an optional location inside the
// offending file, and a hint on how to fix the problem.
//
// # Error Categories
//
//   - config: joint.json could not be read or is invalid
//   - session: a session could not be started or ended
//   - storage: a snapshot backend could not be reached
//   - cli: bad flags or arguments
//
// # Usage
//
//	err := errors.New("J101").
//	    WithLocation("joint.json", 4, 17).
//	    WithSuggestion("Check for a trailing comma")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR J101: Invalid configuration file
//	//
//	//   joint.json:4:17
//	//
//	//        3 │   "sessions": [
//	//   →    4 │     {"file": "art.bin",},
//	//          │                 ^
//	//        5 │   ]
//	//
//	//   Hint: Check for a trailing comma
package errors
