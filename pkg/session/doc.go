// Package session drives a simulation through one recording or replay
// session.
//
// A session binds schema fields to the simulation through Channels. A
// Recorder captures every channel, commits the frame to its Sink and then
// steps the simulation, so frame i holds the state the simulation had before
// step i. A Replayer reads frame i from its Source, restores every channel
// and only then steps, which reproduces the recorded run exactly.
//
//	rec, err := session.NewRecorder(world, channels, writer, session.Options{})
//	if err != nil {
//		return err
//	}
//	return rec.Run(ctx, session.Limits{Duration: 30 * time.Second})
//
// Any schema, format or I/O failure aborts the session. The log is closed on
// every exit path and nothing is retried.
package session
