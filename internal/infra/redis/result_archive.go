package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/ompatel2019/toohak/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ResultArchive stores the final results of finished sessions so hosts can
// fetch scoreboards after the in-memory session is gone:
// SET results:{quizID}:{sessionID} {json}.
type ResultArchive struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResultArchive(client *redis.Client, ttl time.Duration) *ResultArchive {
	return &ResultArchive{client: client, ttl: ttl}
}

func (a *ResultArchive) StoreResults(ctx context.Context, quizID string, sessionID int64, results domain.FinalResults) error {
	data, err := json.Marshal(results)
	if err != nil {
		return err
	}
	return a.client.Set(ctx, a.key(quizID, sessionID), data, a.ttl).Err()
}

// LoadResults fetches an archived scoreboard; ok is false on a miss.
func (a *ResultArchive) LoadResults(ctx context.Context, quizID string, sessionID int64) (domain.FinalResults, bool, error) {
	data, err := a.client.Get(ctx, a.key(quizID, sessionID)).Bytes()
	if err == redis.Nil {
		return domain.FinalResults{}, false, nil
	}
	if err != nil {
		return domain.FinalResults{}, false, err
	}
	var results domain.FinalResults
	if err := json.Unmarshal(data, &results); err != nil {
		return domain.FinalResults{}, false, err
	}
	return results, true, nil
}

func (a *ResultArchive) key(quizID string, sessionID int64) string {
	return "results:" + quizID + ":" + strconv.FormatInt(sessionID, 10)
}
