// Package logfile implements the frame-indexed binary log used to record
// and replay simulation sessions.
//
// A log holds a fixed schema (ordered, typed fields) followed by frames. A
// frame carries exactly one value for every schema field and is tagged with
// an index that starts at 0 and increases by one per frame.
//
// # Writing
//
//	schema, err := logfile.NewSchema(logfile.Vec3("pos"), logfile.Quat("quat"))
//	w, err := logfile.Create("vr_logs/session.srlog", schema, logfile.WriterOptions{FlushEvery: 200})
//	for step := range steps {
//	    _ = w.WriteField("pos", r3.Vector{X: 1})
//	    _ = w.WriteField("quat", quat.Number{Real: 1})
//	    if err := w.CommitFrame(); err != nil {
//	        return err
//	    }
//	}
//	return w.Close()
//
// Frames are buffered in memory and appended to disk every FlushEvery
// commits. Close patches the header with the final frame count; a file
// whose writer never reached Close is rejected by Open with ErrFormat.
//
// # Reading
//
//	r, err := logfile.Open("vr_logs/session.srlog", logfile.ReaderOptions{})
//	defer r.Close()
//	for r.HasNext() {
//	    f, err := r.ReadFrame()
//	    pos, err := f.Vec3("pos")
//	}
//
// Values are stored little-endian at their declared width and read back
// bit-for-bit.
//
// # File layout
//
//	preamble  magic | version | flags | header len | frame count | body len | header hash | preamble hash
//	header    msgpack schema and session metadata
//	body      frames: len u32 | index u64 | payload | xxhash64 u64
package logfile
