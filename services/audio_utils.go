package services

import (
	"errors"
	"io"
	"os"
	"time"

	tcmp3 "github.com/tcolgate/mp3"
)

// MP3Duration sums the frame durations of an MP3 stream.
func MP3Duration(r io.Reader) (time.Duration, error) {
	var (
		dur     time.Duration
		dec     = tcmp3.NewDecoder(r)
		frame   tcmp3.Frame
		skipped int
	)
	for {
		if err := dec.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return 0, err
		}
		dur += frame.Duration()
	}
	return dur, nil
}

func MP3DurationFromFile(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return MP3Duration(f)
}
