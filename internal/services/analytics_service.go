// Package services – AnalyticsService
//
// This file derives read-only rollups from the ledger, click, attribution,
// and followup tables without mutating any of them. The queries are plain
// range scans; all joining and bucketing happens in memory so the formulas
// below stay testable against small fixture sets.
//
// Formulas (exact, for parity with the reporting UI):
//
//	linksSent = ledger rows in range
//	clicks    = click rows whose link id was sent in range
//	ctr       = clicks / linksSent * 100, 0 when linksSent is 0
package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/domain"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/repo"
)

// ChannelStats is the per-channel performance breakdown.
type ChannelStats struct {
	Sent      int64 `json:"sent"`      // inbound messages on the channel
	Responded int64 `json:"responded"` // of those, messages with a ledger row
	Clicks    int64 `json:"clicks"`    // clicks on links triggered by the channel
}

// SegmentStats groups senders by how often they wrote in range.
type SegmentStats struct {
	FirstTime int64 `json:"first_time"` // exactly one message in range
	Repeat    int64 `json:"repeat"`     // more than one
}

// SentimentStats buckets classified messages.
type SentimentStats struct {
	Positive int64 `json:"positive"`
	Neutral  int64 `json:"neutral"`
	Negative int64 `json:"negative"`
}

// FollowupPartition is one side of the with/without-follow-up split.
type FollowupPartition struct {
	Responded int64   `json:"responded"`
	Clicks    int64   `json:"clicks"`
	CTR       float64 `json:"ctr"`
	Revenue   float64 `json:"revenue"`
}

// Report is the full analytics envelope for one shop and time range.
type Report struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	LinksSent int64   `json:"links_sent"`
	Clicks    int64   `json:"clicks"`
	CTR       float64 `json:"ctr"`

	Channels  map[string]ChannelStats `json:"channels"`
	Segments  SegmentStats            `json:"segments"`
	Sentiment SentimentStats          `json:"sentiment"`

	WithFollowup    FollowupPartition `json:"with_followup"`
	WithoutFollowup FollowupPartition `json:"without_followup"`
}

// AnalyticsService computes reports over the shared store.
type AnalyticsService struct {
	DB *gorm.DB
}

// Report assembles the rollup for shopID over [from, to).
func (s *AnalyticsService) Report(ctx context.Context, shopID string, from, to time.Time) (*Report, error) {
	tr := otel.Tracer("services/AnalyticsService")
	ctx, span := tr.Start(ctx, "Report",
		trace.WithAttributes(
			attribute.String("shop.id", shopID),
		),
	)
	defer span.End()

	links, err := repo.ListLinksSentInRange(ctx, s.DB, shopID, from, to)
	if err != nil {
		return nil, err
	}
	msgs, err := repo.ListMessagesInRange(ctx, s.DB, shopID, from, to)
	if err != nil {
		return nil, err
	}

	linkIDs := make([]string, 0, len(links))
	linkByMessage := make(map[string]*domain.LinkSent, len(links)) // highest row id wins
	for i := range links {
		l := &links[i]
		linkIDs = append(linkIDs, l.LinkID)
		if l.MessageID != nil {
			if prev, ok := linkByMessage[*l.MessageID]; !ok || l.ID > prev.ID {
				linkByMessage[*l.MessageID] = l
			}
		}
	}

	clicks, err := repo.ListClicksForLinks(ctx, s.DB, linkIDs)
	if err != nil {
		return nil, err
	}
	clicksByLink := make(map[string]int64, len(clicks))
	for _, c := range clicks {
		clicksByLink[c.LinkID]++
	}

	rep := &Report{
		From:      from,
		To:        to,
		LinksSent: int64(len(links)),
		Clicks:    int64(len(clicks)),
		Channels: map[string]ChannelStats{
			domain.ChannelDM:      {},
			domain.ChannelComment: {},
		},
	}
	rep.CTR = ratioPct(rep.Clicks, rep.LinksSent)

	// Channel performance, segments, sentiment: one pass over messages.
	bySender := make(map[string]int64, len(msgs))
	respondedIDs := make([]string, 0, len(msgs))
	for i := range msgs {
		m := &msgs[i]
		ch := rep.Channels[m.Channel]
		ch.Sent++
		if link, ok := linkByMessage[m.ID]; ok {
			ch.Responded++
			ch.Clicks += clicksByLink[link.LinkID]
			respondedIDs = append(respondedIDs, m.ID)
		}
		rep.Channels[m.Channel] = ch

		bySender[m.SenderID]++
		bucketSentiment(&rep.Sentiment, m.AISentiment)
	}
	for _, n := range bySender {
		if n == 1 {
			rep.Segments.FirstTime++
		} else {
			rep.Segments.Repeat++
		}
	}

	// Follow-up performance: partition responded messages.
	followups, err := repo.ListFollowupsForMessages(ctx, s.DB, shopID, respondedIDs)
	if err != nil {
		return nil, err
	}
	hasFollowup := make(map[string]bool, len(followups))
	for _, f := range followups {
		hasFollowup[f.MessageID] = true
	}

	attrs, err := repo.ListAttributionsForLinks(ctx, s.DB, shopID, linkIDs)
	if err != nil {
		return nil, err
	}
	revenueByLink := make(map[string]float64, len(attrs))
	for _, a := range attrs {
		if a.LinkID != nil {
			revenueByLink[*a.LinkID] += a.Amount
		}
	}

	for _, id := range respondedIDs {
		link := linkByMessage[id]
		part := &rep.WithoutFollowup
		if hasFollowup[id] {
			part = &rep.WithFollowup
		}
		part.Responded++
		part.Clicks += clicksByLink[link.LinkID]
		part.Revenue += revenueByLink[link.LinkID]
	}
	rep.WithFollowup.CTR = ratioPct(rep.WithFollowup.Clicks, rep.WithFollowup.Responded)
	rep.WithoutFollowup.CTR = ratioPct(rep.WithoutFollowup.Clicks, rep.WithoutFollowup.Responded)

	span.SetAttributes(
		attribute.Int64("report.links_sent", rep.LinksSent),
		attribute.Int64("report.clicks", rep.Clicks),
	)
	return rep, nil
}

// ratioPct computes num/den*100, returning 0 when den is 0.
func ratioPct(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den) * 100
}

// bucketSentiment applies the case-insensitive substring match on
// positive/negative; everything else (including unclassified) is neutral.
func bucketSentiment(st *SentimentStats, sentiment *string) {
	if sentiment == nil {
		st.Neutral++
		return
	}
	low := strings.ToLower(*sentiment)
	switch {
	case strings.Contains(low, "positive"):
		st.Positive++
	case strings.Contains(low, "negative"):
		st.Negative++
	default:
		st.Neutral++
	}
}
