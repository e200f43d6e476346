package youtube

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
)

// NewProgressBar returns an OnProgress callback that renders acknowledged
// bytes to w.
func NewProgressBar(w io.Writer, description string) func(UploadSession) {
	var bar *progressbar.ProgressBar
	return func(s UploadSession) {
		if bar == nil {
			bar = progressbar.NewOptions64(s.TotalBytes,
				progressbar.OptionSetWriter(w),
				progressbar.OptionSetDescription(description),
				progressbar.OptionShowBytes(true),
				progressbar.OptionSetWidth(30),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
			)
		}
		_ = bar.Set64(s.BytesAcknowledged)
	}
}
