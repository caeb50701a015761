package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/nao1215/sitecrawler/internal/crawler"
	"github.com/nao1215/sitecrawler/internal/model"
)

// progressInterval is how often the progress bar polls the engine.
const progressInterval = 500 * time.Millisecond

// startProgress draws a progress bar of saved pages against maxPages until
// the returned function is called.
func startProgress(engine *crawler.Engine, maxPages int, w io.Writer) func() {
	bar := newProgressBar(maxPages, w)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				st := engine.Status()
				bar.Describe(progressDescription(st))
				_ = bar.Set64(st.PagesCrawled) //nolint:errcheck // rendering only
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
		_ = bar.Finish() //nolint:errcheck // rendering only
	}
}

func newProgressBar(maxPages int, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxPages,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("crawling"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func progressDescription(st model.LiveStatus) string {
	return fmt.Sprintf("queued %d, found %d, errors %d", st.QueueDepth, st.PagesFound, st.Errors)
}
