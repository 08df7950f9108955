// Package search mirrors application records into an Elasticsearch index.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"loan-api/internal/common/errors"
	"loan-api/internal/common/logger"
	"loan-api/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

// document is the indexed shape; it flattens the decision for querying.
type document struct {
	ID               string     `json:"id"`
	FirstName        string     `json:"firstName"`
	LastName         string     `json:"lastName"`
	Email            string     `json:"email"`
	Income           float64    `json:"income"`
	Amount           float64    `json:"amount"`
	Status           string     `json:"status"`
	DecisionApproved *bool      `json:"decisionApproved,omitempty"`
	DecisionReason   string     `json:"decisionReason,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        *time.Time `json:"updatedAt,omitempty"`
	IndexedAt        time.Time  `json:"indexedAt"`
}

type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "search", "index": index}),
	}
}

func (i *Indexer) ApplicationSubmitted(ctx context.Context, app models.Application) {
	i.indexAndLog(ctx, app)
}

func (i *Indexer) StatusChanged(ctx context.Context, app models.Application, _ models.Status) {
	i.indexAndLog(ctx, app)
}

func (i *Indexer) indexAndLog(ctx context.Context, app models.Application) {
	if err := i.Index(ctx, app); err != nil {
		i.logger.Error("indexing failed", map[string]interface{}{
			"applicationId": app.ID,
			"error":         err,
		})
	}
}

// Index writes app under its id, replacing any previous version.
func (i *Indexer) Index(ctx context.Context, app models.Application) error {
	doc := document{
		ID:        app.ID,
		FirstName: app.FirstName,
		LastName:  app.LastName,
		Email:     app.Email,
		Income:    app.Income,
		Amount:    app.Amount,
		Status:    string(app.Status),
		CreatedAt: app.CreatedAt,
		UpdatedAt: app.UpdatedAt,
		IndexedAt: time.Now().UTC(),
	}
	if app.Decision != nil {
		approved := app.Decision.Approved
		doc.DecisionApproved = &approved
		doc.DecisionReason = app.Decision.Reason
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return errors.NewIndexingFailedError(app.ID, err)
	}

	res, err := i.client.Index(
		i.index,
		bytes.NewReader(body),
		i.client.Index.WithDocumentID(app.ID),
		i.client.Index.WithContext(ctx),
	)
	if err != nil {
		return errors.NewIndexingFailedError(app.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.NewIndexingFailedError(app.ID, fmt.Errorf("elasticsearch responded %s", res.Status()))
	}
	return nil
}
