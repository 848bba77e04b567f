// Package channel frames discrete text messages over a byte stream.
//
// Each message is written as its bytes followed by a single NUL terminator;
// there is no length prefix. The receiving side buffers input until the
// terminator arrives, so a message may be split across any number of reads
// and several messages may arrive in one read.
//
//	if err := channel.Send(w, "3_1"); err != nil {
//	    return err // *IOError
//	}
//
//	rx := channel.NewReceiver(r)
//	msg, err := rx.Receive()
//	if errors.Is(err, channel.ErrClosed) {
//	    // peer closed its write end
//	}
//
// # Interruption
//
// A read or write that fails with EINTR is retried and never reported to
// the caller. SleepFull gives the same guarantee for the worker's compute
// delay.
package channel
