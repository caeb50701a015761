package storage

import (
	"context"

	"github.com/nao1215/sitecrawler/internal/model"
)

// Sink receives accepted pages. It matches the crawler's sink interface.
type Sink interface {
	Persist(ctx context.Context, page *model.PageRecord) error
}

// multiSink fans a page out to several sinks.
type multiSink []Sink

// Multi returns a sink that writes every page to each of sinks in order.
// It stops at the first failing sink, so a later sink such as the page
// index only records pages that every earlier sink stored.
func Multi(sinks ...Sink) Sink {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return multiSink(sinks)
}

func (m multiSink) Persist(ctx context.Context, page *model.PageRecord) error {
	for _, s := range m {
		if err := s.Persist(ctx, page); err != nil {
			return err
		}
	}
	return nil
}
