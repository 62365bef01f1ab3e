package generation

import (
	"context"

	"github.com/google/uuid"
	"github.com/hikitugu/handover/internal/aggregator"
	"github.com/hikitugu/handover/internal/apperr"
	"github.com/hikitugu/handover/internal/models"
	"github.com/hikitugu/handover/internal/sources"
)

// TokenResolver returns a user's decrypted access token for a provider
type TokenResolver struct {
	tokens    TokenStore
	decrypter Decrypter
}

// NewTokenResolver creates a resolver. A nil decrypter means no valid
// encryption key is configured; every resolution then fails.
func NewTokenResolver(tokens TokenStore, decrypter Decrypter) *TokenResolver {
	return &TokenResolver{tokens: tokens, decrypter: decrypter}
}

// AccessToken loads and decrypts the token. A missing row is NotFound; a
// missing key or undecryptable value is a Configuration error.
func (r *TokenResolver) AccessToken(ctx context.Context, userID uuid.UUID, provider models.Provider) (string, error) {
	tok, err := r.tokens.GetToken(ctx, userID, provider)
	if err != nil {
		return "", err
	}
	if r.decrypter == nil {
		return "", apperr.Configuration("token encryption key is not configured")
	}

	plain, err := r.decrypter.Decrypt(tok.EncryptedAccessToken)
	if err != nil {
		return "", apperr.E(apperr.KindConfiguration, "decrypt "+string(provider)+" token", err)
	}
	return plain, nil
}

// Collector fetches every data source of a document, one after another
type Collector struct {
	clients sources.Clients
	tokens  *TokenResolver
}

// NewCollector creates a collector
func NewCollector(clients sources.Clients, tokens *TokenResolver) *Collector {
	return &Collector{clients: clients, tokens: tokens}
}

// Collect fetches and aggregates. The first failure aborts the collection.
// Calendar events are fetched up to the end of the last day of the range.
func (c *Collector) Collect(ctx context.Context, doc *models.Document) (aggregator.Result, error) {
	var (
		events   []sources.Event
		messages []sources.Message
		rows     []sources.SpreadsheetRow
	)

	for _, src := range doc.DataSources.Dedup() {
		if !src.Valid() {
			return aggregator.Result{}, apperr.Validation("unsupported data source %q", src)
		}

		token, err := c.tokens.AccessToken(ctx, doc.CreatedBy, src.Provider())
		if err != nil {
			return aggregator.Result{}, err
		}

		switch src {
		case models.SourceCalendar:
			if c.clients.Calendar == nil {
				return aggregator.Result{}, apperr.Configuration("calendar client is not configured")
			}
			to := doc.DateRangeEnd.AddDate(0, 0, 1)
			evs, err := c.clients.Calendar.Events(ctx, token, doc.DateRangeStart, to, doc.TargetUserEmail)
			if err != nil {
				return aggregator.Result{}, apperr.External("fetch calendar events", err)
			}
			events = append(events, evs...)

		case models.SourceSlack:
			if c.clients.Chat == nil {
				return aggregator.Result{}, apperr.Configuration("slack client is not configured")
			}
			for _, channelID := range doc.Metadata.SlackChannelIDs {
				msgs, err := c.clients.Chat.Messages(ctx, token, channelID, doc.DateRangeStart, doc.DateRangeEnd.AddDate(0, 0, 1))
				if err != nil {
					return aggregator.Result{}, apperr.External("fetch slack channel "+channelID, err)
				}
				messages = append(messages, msgs...)
			}

		case models.SourceSpreadsheet:
			if c.clients.Sheets == nil {
				return aggregator.Result{}, apperr.Configuration("sheets client is not configured")
			}
			for _, id := range doc.Metadata.SpreadsheetIDs {
				ss, err := c.clients.Sheets.Spreadsheet(ctx, token, id, "")
				if err != nil {
					return aggregator.Result{}, apperr.External("fetch spreadsheet "+id, err)
				}
				rows = append(rows, ss.Rows()...)
			}
		}
	}

	return aggregator.Aggregate(events, messages, rows), nil
}
