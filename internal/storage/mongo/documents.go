package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/hongminglow/todo-api/internal/models"
)

type userDocument struct {
	ID           bson.ObjectID   `bson:"_id,omitempty"`
	Username     string          `bson:"username"`
	FirstName    string          `bson:"firstName"`
	LastName     string          `bson:"lastName"`
	Email        string          `bson:"email"`
	Phone        string          `bson:"phone"`
	PasswordHash string          `bson:"password"`
	Profile      string          `bson:"profile"`
	RefreshToken string          `bson:"refreshToken,omitempty"`
	Todos        []bson.ObjectID `bson:"myTodos"`
	CreatedAt    time.Time       `bson:"createdAt"`
	UpdatedAt    time.Time       `bson:"updatedAt"`
}

type todoDocument struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	Title       string        `bson:"title"`
	Description string        `bson:"description"`
	IsCompleted bool          `bson:"isCompleted"`
	Image       string        `bson:"image"`
	CreatedBy   bson.ObjectID `bson:"createdBy"`
	CreatedAt   time.Time     `bson:"createdAt"`
	UpdatedAt   time.Time     `bson:"updatedAt"`
}

func (d userDocument) model() models.User {
	ids := make([]string, 0, len(d.Todos))
	for _, id := range d.Todos {
		ids = append(ids, id.Hex())
	}
	return models.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Email:        d.Email,
		Phone:        d.Phone,
		PasswordHash: d.PasswordHash,
		Profile:      d.Profile,
		RefreshToken: d.RefreshToken,
		TodoIDs:      ids,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func (d todoDocument) model() models.Todo {
	return models.Todo{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		IsCompleted: d.IsCompleted,
		Image:       d.Image,
		CreatedBy:   d.CreatedBy.Hex(),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}
