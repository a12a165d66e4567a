package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hongminglow/todo-api/internal/models"
	"github.com/hongminglow/todo-api/internal/storage"
)

func (s *Store) CreateTodo(ctx context.Context, todo models.Todo) (models.Todo, error) {
	owner, err := objectID(todo.CreatedBy)
	if err != nil {
		return models.Todo{}, err
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := todoDocument{
		ID:          bson.NewObjectID(),
		Title:       todo.Title,
		Description: todo.Description,
		IsCompleted: todo.IsCompleted,
		Image:       todo.Image,
		CreatedBy:   owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.todos.InsertOne(ctx, doc); err != nil {
		return models.Todo{}, translate(err)
	}
	return doc.model(), nil
}

func (s *Store) FindTodoByID(ctx context.Context, id string) (models.Todo, error) {
	oid, err := objectID(id)
	if err != nil {
		return models.Todo{}, err
	}
	return decodeTodo(s.todos.FindOne(ctx, bson.M{"_id": oid}))
}

func (s *Store) FindTodoByTitle(ctx context.Context, title string) (models.Todo, error) {
	return decodeTodo(s.todos.FindOne(ctx, bson.M{"title": title}))
}

func (s *Store) FindTodosByIDs(ctx context.Context, ids []string) ([]models.Todo, error) {
	if len(ids) == 0 {
		return []models.Todo{}, nil
	}
	oids := make([]bson.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := objectID(id)
		if err != nil {
			return nil, err
		}
		oids = append(oids, oid)
	}

	cur, err := s.todos.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	var docs []todoDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	todos := make([]models.Todo, 0, len(docs))
	for _, d := range docs {
		todos = append(todos, d.model())
	}
	return storage.OrderByIDs(ids, todos), nil
}

func (s *Store) UpdateTodo(ctx context.Context, todo models.Todo) (models.Todo, error) {
	oid, err := objectID(todo.ID)
	if err != nil {
		return models.Todo{}, err
	}
	update := bson.M{"$set": bson.M{
		"title":       todo.Title,
		"description": todo.Description,
		"isCompleted": todo.IsCompleted,
		"image":       todo.Image,
		"updatedAt":   time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	res := s.todos.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts)
	if err := res.Err(); err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Todo{}, translate(err)
	}
	return decodeTodo(res)
}

func (s *Store) DeleteTodo(ctx context.Context, id string) (models.Todo, error) {
	oid, err := objectID(id)
	if err != nil {
		return models.Todo{}, err
	}
	return decodeTodo(s.todos.FindOneAndDelete(ctx, bson.M{"_id": oid}))
}

func decodeTodo(res *mongo.SingleResult) (models.Todo, error) {
	var doc todoDocument
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Todo{}, storage.ErrNotFound
		}
		return models.Todo{}, err
	}
	return doc.model(), nil
}
