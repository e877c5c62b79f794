// Package feedex embeds the feedex recommendation engine in a Go program.
//
// The client wires the same services the feedex server runs, directly on
// top of Redis or an in-process store:
//
//	client, _ := feedex.New(ctx, feedex.WithRedis("localhost:6379", ""))
//	defer client.Close()
//
//	_, _ = client.UpsertItem(ctx, feedex.Item{ID: 1, CreatorID: 7, Genres: []string{"techno"}})
//	_, _ = client.Like(ctx, 42, 1)
//	page, _ := client.Feed(ctx, 42, 1, 20)
//
// Taste profiles converge in batch cycles. Embedded users either call
// RunBatch on their own schedule or run the feedex server alongside.
package feedex
