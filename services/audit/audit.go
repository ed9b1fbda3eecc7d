package audit

import (
	"context"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB names for audit storage
const (
	DatabaseName     = "tradepulse"
	EventsCollection = "audit_events"

	// SystemActor tags entries written by the poll orchestrators rather
	// than a human user.
	SystemActor = "system"

	writeTimeout   = 5 * time.Second
	connectTimeout = 10 * time.Second
)

// Logger records orchestrator and trade-execution activity. Recording is
// best-effort: an audit failure is logged and never interrupts a tick.
type Logger interface {
	Record(ctx context.Context, event string, fields map[string]interface{})
}

// MongoLogger writes audit documents to MongoDB.
type MongoLogger struct {
	client *mongo.Client
	events *mongo.Collection
}

// NewMongoLogger connects to MongoDB and verifies the connection.
func NewMongoLogger(ctx context.Context, uri string) (*MongoLogger, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	log.Println("Audit log connected to MongoDB")
	return &MongoLogger{
		client: client,
		events: client.Database(DatabaseName).Collection(EventsCollection),
	}, nil
}

func (l *MongoLogger) Record(ctx context.Context, event string, fields map[string]interface{}) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	doc := bson.M{
		"actor":       SystemActor,
		"event":       event,
		"fields":      fields,
		"recorded_at": time.Now().UTC(),
	}
	if _, err := l.events.InsertOne(ctx, doc); err != nil {
		log.Printf("Audit write failed for %s: %v", event, err)
	}
}

// Close disconnects the underlying client.
func (l *MongoLogger) Close(ctx context.Context) error {
	return l.client.Disconnect(ctx)
}

// LogOnly degrades audit events to process logs when no MongoDB is
// configured.
type LogOnly struct{}

func (LogOnly) Record(ctx context.Context, event string, fields map[string]interface{}) {
	log.Printf("audit: %s %v", event, fields)
}

// FromEnv returns a Mongo-backed logger when MONGODB_URI is set and a
// log-only fallback otherwise.
func FromEnv(ctx context.Context) Logger {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		log.Println("MONGODB_URI not set, audit events will go to the process log")
		return LogOnly{}
	}
	logger, err := NewMongoLogger(ctx, uri)
	if err != nil {
		log.Printf("MongoDB audit connection failed, falling back to process log: %v", err)
		return LogOnly{}
	}
	return logger
}
