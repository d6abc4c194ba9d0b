package app

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"go.uber.org/multierr"

	"github.com/bft-labs/simreplay/pkg/log"
	"github.com/bft-labs/simreplay/pkg/logfile"
)

// InspectOptions controls what Inspect prints.
type InspectOptions struct {
	// Frames is the number of leading frames whose values are printed.
	Frames int

	// Verify reads every frame so record checksums are checked.
	Verify bool

	Logger log.Logger
}

// Inspect prints the header and schema of the log at path to out.
func Inspect(path string, out io.Writer, opts InspectOptions) (err error) {
	rd, err := logfile.Open(path, logfile.ReaderOptions{Logger: opts.Logger})
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, rd.Close())
	}()

	hdr := rd.Header()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "path\t%s\n", path)
	fmt.Fprintf(tw, "session\t%s\n", hdr.SessionID)
	fmt.Fprintf(tw, "created\t%s\n", hdr.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(tw, "format\tv%d\n", hdr.FormatVersion)
	fmt.Fprintf(tw, "codec\t%s\n", hdr.Codec)
	fmt.Fprintf(tw, "frames\t%d\n", hdr.FrameCount)
	fmt.Fprintf(tw, "fields\t%d\n", hdr.Schema.Len())
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tKIND\tDTYPE\tSHAPE")
	for _, f := range hdr.Schema.Fields() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%v\n", f.Name, f.Kind, f.DType, f.Shape)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	var read uint64
	for rd.HasNext() && (opts.Verify || read < uint64(opts.Frames)) {
		frame, err := rd.ReadFrame()
		if err != nil {
			return err
		}
		if read < uint64(opts.Frames) {
			if err := printFrame(out, frame); err != nil {
				return err
			}
		}
		read++
	}
	if opts.Verify {
		fmt.Fprintf(out, "\nverified %d frames\n", read)
	}
	return nil
}

func printFrame(out io.Writer, frame *logfile.Frame) error {
	fmt.Fprintf(out, "\nframe %d\n", frame.Index())
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, name := range frame.Schema().Names() {
		v, err := frame.Get(name)
		if err != nil {
			return err
		}
		if v.Field().Kind == logfile.KindBlob {
			b, err := v.Blob()
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "  %s\t<%d bytes>\n", name, len(b))
			continue
		}
		x, err := v.Interface()
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "  %s\t%v\n", name, x)
	}
	return tw.Flush()
}
