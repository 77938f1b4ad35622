package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/gov-dx-sandbox/attribute-forms/shared/monitoring"
	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
)

// DocumentArchiveHandle identifies the document archive action
const DocumentArchiveHandle = "document_archive"

// DocumentStore inserts one document into a named collection
type DocumentStore interface {
	Insert(ctx context.Context, collection string, doc any) error
}

// MongoDocumentStore is a DocumentStore backed by a mongo database
type MongoDocumentStore struct {
	db *mongo.Database
}

func NewMongoDocumentStore(db *mongo.Database) *MongoDocumentStore {
	return &MongoDocumentStore{db: db}
}

func (s *MongoDocumentStore) Insert(ctx context.Context, collection string, doc any) error {
	start := time.Now()
	_, err := s.db.Collection(collection).InsertOne(ctx, doc)
	monitoring.RecordExternalCall("mongo", "insert", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to archive document in %s: %w", collection, err)
	}
	return nil
}

type documentArchiveConfig struct {
	Collection string `json:"collection"`
}

// DocumentArchiveAction stores a denormalized copy of each clean submission
type DocumentArchiveAction struct {
	store DocumentStore
}

func NewDocumentArchiveAction(store DocumentStore) *DocumentArchiveAction {
	return &DocumentArchiveAction{store: store}
}

func (a *DocumentArchiveAction) Handle() string { return DocumentArchiveHandle }
func (a *DocumentArchiveAction) Name() string   { return "Archive Submission Document" }

func (a *DocumentArchiveAction) ValidateForm(input RawInput, existingActionID string) error {
	name := input.String("collection")
	switch {
	case name == "":
		return fmt.Errorf("%w: collection is required", models.ErrInvalidActionConfig)
	case strings.ContainsAny(name, "$\x00"), strings.HasPrefix(name, "system."):
		return fmt.Errorf("%w: invalid collection name %q", models.ErrInvalidActionConfig, name)
	}
	return nil
}

func (a *DocumentArchiveAction) ParseConfiguration(input RawInput, existingActionID string) ([]byte, error) {
	if err := a.ValidateForm(input, existingActionID); err != nil {
		return nil, err
	}
	return json.Marshal(documentArchiveConfig{Collection: input.String("collection")})
}

func (a *DocumentArchiveAction) Execute(ctx context.Context, config []byte, sub SubmissionView, ectx ExecutionContext) error {
	if a.store == nil {
		return errors.New("document archive is not configured")
	}
	var cfg documentArchiveConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("%w: %w", models.ErrInvalidActionConfig, err)
	}

	fields := make(bson.A, 0, len(sub.Fields))
	for _, f := range sub.Fields {
		fields = append(fields, bson.M{
			"fieldKeyId": f.FieldKeyID,
			"handle":     f.Handle,
			"name":       f.Name,
			"type":       f.Type,
			"raw":        f.Raw,
			"display":    f.Display,
		})
	}
	return a.store.Insert(ctx, cfg.Collection, bson.M{
		"_id":        sub.ID,
		"formTypeId": sub.FormTypeID,
		"formName":   sub.FormName,
		"instanceId": sub.InstanceID,
		"siteName":   ectx.SiteName,
		"createdAt":  sub.CreatedAt,
		"values":     sub.Values(),
		"fields":     fields,
	})
}
