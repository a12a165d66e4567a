// Package mongo persists users and todos in MongoDB collections. Uniqueness
// of username, email, phone and todo title is enforced by unique indexes.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hongminglow/todo-api/internal/models"
	"github.com/hongminglow/todo-api/internal/storage"
)

var _ storage.Store = (*Store)(nil)

const (
	usersCollection = "users"
	todosCollection = "todos"
)

// Store is a MongoDB-backed storage.Store.
type Store struct {
	client *mongo.Client
	users  *mongo.Collection
	todos  *mongo.Collection
}

// NewStore connects to uri and selects database.
func NewStore(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	db := client.Database(database)
	return &Store{
		client: client,
		users:  db.Collection(usersCollection),
		todos:  db.Collection(todosCollection),
	}, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Migrate creates the unique indexes the store relies on.
func (s *Store) Migrate(ctx context.Context) error {
	userIndexes := []mongo.IndexModel{
		uniqueIndex("username"),
		uniqueIndex("email"),
		uniqueIndex("phone"),
	}
	if _, err := s.users.Indexes().CreateMany(ctx, userIndexes); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	todoIndexes := []mongo.IndexModel{
		uniqueIndex("title"),
		{Keys: bson.D{{Key: "createdBy", Value: 1}}},
	}
	if _, err := s.todos.Indexes().CreateMany(ctx, todoIndexes); err != nil {
		return fmt.Errorf("create todo indexes: %w", err)
	}
	return nil
}

func uniqueIndex(field string) mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetUnique(true),
	}
}

func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := userDocument{
		ID:           bson.NewObjectID(),
		Username:     user.Username,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Email:        user.Email,
		Phone:        user.Phone,
		PasswordHash: user.PasswordHash,
		Profile:      user.Profile,
		Todos:        []bson.ObjectID{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		return models.User{}, translate(err)
	}
	return doc.model(), nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return models.User{}, err
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

// FindByIdentifier tries username, then email, then phone.
func (s *Store) FindByIdentifier(ctx context.Context, identifier string) (models.User, error) {
	for _, field := range []string{"username", "email", "phone"} {
		user, err := s.findUser(ctx, bson.M{field: identifier})
		if !errors.Is(err, storage.ErrNotFound) {
			return user, err
		}
	}
	return models.User{}, storage.ErrNotFound
}

func (s *Store) FindConflicting(ctx context.Context, username, email, phone string) (models.User, error) {
	return s.findUser(ctx, bson.M{"$or": bson.A{
		bson.M{"username": username},
		bson.M{"email": email},
		bson.M{"phone": phone},
	}})
}

func (s *Store) SetRefreshToken(ctx context.Context, userID, token string) error {
	update := bson.M{"$set": bson.M{"refreshToken": token, "updatedAt": time.Now().UTC()}}
	if token == "" {
		update = bson.M{
			"$unset": bson.M{"refreshToken": ""},
			"$set":   bson.M{"updatedAt": time.Now().UTC()},
		}
	}
	return s.updateUser(ctx, userID, update)
}

func (s *Store) SetTodoIDs(ctx context.Context, userID string, todoIDs []string) error {
	oids := make([]bson.ObjectID, 0, len(todoIDs))
	for _, id := range todoIDs {
		oid, err := objectID(id)
		if err != nil {
			return err
		}
		oids = append(oids, oid)
	}
	return s.updateUser(ctx, userID, bson.M{"$set": bson.M{"myTodos": oids, "updatedAt": time.Now().UTC()}})
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (models.User, error) {
	var doc userDocument
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	return doc.model(), nil
}

func (s *Store) updateUser(ctx context.Context, userID string, update bson.M) error {
	oid, err := objectID(userID)
	if err != nil {
		return err
	}
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func objectID(id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.ObjectID{}, storage.ErrInvalidID
	}
	return oid, nil
}

func translate(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return storage.ErrAlreadyExists
	}
	return err
}
