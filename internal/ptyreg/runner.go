package ptyreg

import (
	"context"
	"io"
	"os/exec"
)

// RunToCompletion hosts cmd inside a PTY of the given size and blocks
// until it exits, returning the full captured output. It is the
// lower-level primitive for one-shot PTY runs, as opposed to the durable,
// reconnectable sessions Registry manages for interactive terminals. The
// Ralph Execution Engine calls it only for a spec with SpawnMode ==
// SpawnPty, and the engine builds only piped specs.
func RunToCompletion(ctx context.Context, cmd *exec.Cmd, cols, rows int) ([]byte, error) {
	s, err := newSession("", cols, rows, cmd.Dir, cmd)
	if err != nil {
		return nil, err
	}

	ch, cancel := s.Subscribe()
	defer cancel()

	var output []byte
	done := make(chan struct{})
	go func() {
		defer close(done)
		for chunk := range ch {
			output = append(output, chunk...)
		}
	}()

	waitDone := make(chan struct{})
	go func() {
		s.Wait()
		close(waitDone)
	}()

	select {
	case <-ctx.Done():
		s.Close()
		<-waitDone
	case <-waitDone:
	}
	<-done

	if err := s.exitErr; err != nil && err != io.EOF {
		return output, err
	}
	if ctx.Err() != nil {
		return output, ctx.Err()
	}
	return output, nil
}
