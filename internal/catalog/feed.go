package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActiveLister reads the sellable catalog.
type ActiveLister interface {
	ListActive(ctx context.Context) ([]Product, error)
}

// Feed turns change notifications into full active-catalog snapshots.
type Feed struct {
	source  ActiveLister
	client  *redis.Client
	channel string
	resync  time.Duration
	logger  *slog.Logger
}

// FeedOptions tunes a Feed.
type FeedOptions struct {
	Channel string
	// Resync forces a periodic re-read so a dropped notification only delays
	// a refresh. Zero disables it.
	Resync time.Duration
	Logger *slog.Logger
}

// NewFeed constructs a Feed. A nil client yields only the initial snapshot
// plus periodic resyncs.
func NewFeed(source ActiveLister, client *redis.Client, opts FeedOptions) *Feed {
	if opts.Channel == "" {
		opts.Channel = ChangeChannel
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Feed{source: source, client: client, channel: opts.Channel, resync: opts.Resync, logger: opts.Logger}
}

// Subscribe starts a snapshot stream that lives until ctx is done. The first
// value is the current catalog; each later value is a complete re-read taken
// after a change. Bursts of changes coalesce and a slow reader only ever sees
// the newest snapshot. The channel is closed when ctx ends; calling Subscribe
// again starts a fresh stream.
func (f *Feed) Subscribe(ctx context.Context) <-chan Snapshot {
	out := make(chan Snapshot, 1)
	go f.run(ctx, out)
	return out
}

func (f *Feed) run(ctx context.Context, out chan Snapshot) {
	defer close(out)

	var changes <-chan *redis.Message
	if f.client != nil {
		pubsub := f.client.Subscribe(ctx, f.channel)
		defer func() { _ = pubsub.Close() }()
		if _, err := pubsub.Receive(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			f.logger.Warn("catalog feed subscribe", slog.String("channel", f.channel), slog.Any("error", err))
		} else {
			changes = pubsub.Channel()
		}
	}

	var tick <-chan time.Time
	if f.resync > 0 {
		ticker := time.NewTicker(f.resync)
		defer ticker.Stop()
		tick = ticker.C
	}

	f.emit(ctx, out)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			f.emit(ctx, out)
		case _, ok := <-changes:
			if !ok {
				return
			}
			drainMessages(changes)
			f.emit(ctx, out)
		}
	}
}

func (f *Feed) emit(ctx context.Context, out chan Snapshot) {
	products, err := f.source.ListActive(ctx)
	if err != nil {
		if ctx.Err() == nil {
			f.logger.Warn("catalog feed reload", slog.Any("error", err))
		}
		return
	}
	snap := Snapshot{Products: products, At: time.Now().UTC()}
	select {
	case out <- snap:
		return
	default:
	}
	// reader is behind: replace the stale snapshot
	select {
	case <-out:
	default:
	}
	select {
	case out <- snap:
	case <-ctx.Done():
	}
}

func drainMessages(ch <-chan *redis.Message) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
