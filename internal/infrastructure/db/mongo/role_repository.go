package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/opendatanode/manager/internal/core/domain"
)

const rolesCollection = "roles"

// RoleRepository stores the role catalogue.
type RoleRepository struct {
	coll *mongo.Collection
}

func NewRoleRepository(db *mongo.Database) *RoleRepository {
	return &RoleRepository{coll: db.Collection(rolesCollection)}
}

type mongoRole struct {
	Name        string `bson:"_id"`
	Description string `bson:"desc,omitempty"`
	Hidden      bool   `bson:"hide,omitempty"`
}

func (r *RoleRepository) List(ctx context.Context) ([]domain.Role, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer cur.Close(ctx)

	var roles []domain.Role
	for cur.Next(ctx) {
		var mr mongoRole
		if err := cur.Decode(&mr); err != nil {
			return nil, fmt.Errorf("decode role: %w", err)
		}
		roles = append(roles, domain.Role{Name: mr.Name, Description: mr.Description, Hidden: mr.Hidden})
	}
	return roles, cur.Err()
}

func (r *RoleRepository) FindByName(ctx context.Context, name string) (*domain.Role, error) {
	var mr mongoRole
	if err := r.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&mr); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRoleNotFound
		}
		return nil, fmt.Errorf("find role: %w", err)
	}
	return &domain.Role{Name: mr.Name, Description: mr.Description, Hidden: mr.Hidden}, nil
}

// EnsureBootstrap inserts any missing role from the fixed set. Existing
// roles keep their stored description and visibility.
func (r *RoleRepository) EnsureBootstrap(ctx context.Context, roles []domain.Role) error {
	for _, role := range roles {
		_, err := r.coll.UpdateOne(ctx,
			bson.M{"_id": role.Name},
			bson.M{"$setOnInsert": bson.M{"desc": role.Description, "hide": role.Hidden}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("bootstrap role %s: %w", role.Name, err)
		}
	}
	return nil
}
