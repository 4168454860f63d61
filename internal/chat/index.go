package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mindfulhq/mindful/internal/store"
)

// Key scheme, one index record plus one body record per session:
//
//	chats_list_<userID>            serialized []storedSummary
//	chat_<userID>_<sessionID>      serialized storedSession
func indexKey(userID string) string {
	return "chats_list_" + userID
}

func bodyKey(userID, sessionID string) string {
	return "chat_" + userID + "_" + sessionID
}

type storedSummary struct {
	SessionID    string `json:"session_id"`
	Title        string `json:"title"`
	LastActivity int64  `json:"last_activity"`
	Preview      string `json:"preview,omitempty"`
}

// loadIndex reads the per-user catalog. An absent record is an empty
// catalog, never an error; a malformed one is corrupt.
func (r *Repository) loadIndex(ctx context.Context, userID string) ([]Summary, error) {
	data, err := r.kv.Get(ctx, indexKey(userID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: load index: %v", ErrStorageFailure, err)
	}
	var stored []storedSummary
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return nil, fmt.Errorf("%w: index: %v", ErrCorruptRecord, err)
	}
	summaries := make([]Summary, 0, len(stored))
	for _, s := range stored {
		summaries = append(summaries, Summary{
			SessionID:    s.SessionID,
			Title:        s.Title,
			LastActivity: time.UnixMilli(s.LastActivity),
			Preview:      s.Preview,
		})
	}
	return summaries, nil
}

// saveIndex replaces the per-user catalog. Total overwrite, never a merge.
func (r *Repository) saveIndex(ctx context.Context, userID string, summaries []Summary) error {
	stored := make([]storedSummary, 0, len(summaries))
	for _, s := range summaries {
		stored = append(stored, storedSummary{
			SessionID:    s.SessionID,
			Title:        s.Title,
			LastActivity: s.LastActivity.UnixMilli(),
			Preview:      s.Preview,
		})
	}
	b, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("%w: encode index: %v", ErrStorageFailure, err)
	}
	if err := r.kv.Set(ctx, indexKey(userID), string(b)); err != nil {
		return fmt.Errorf("%w: save index: %v", ErrStorageFailure, err)
	}
	return nil
}

// sortSummaries orders for display: lastActivity descending, ties broken
// by sessionID ascending so the order is deterministic.
func sortSummaries(summaries []Summary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		if !summaries[i].LastActivity.Equal(summaries[j].LastActivity) {
			return summaries[i].LastActivity.After(summaries[j].LastActivity)
		}
		return summaries[i].SessionID < summaries[j].SessionID
	})
}
