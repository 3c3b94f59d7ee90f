package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/onpipiece/onpi-platform/internal/model"
)

// mongoStore backs the record set with a MongoDB collection. Arrays and
// timestamps are native here, so no stringified representations are written;
// the unique index on account_id is the substrate-level atomicity guarantee
// behind Insert.
type mongoStore struct {
	client *mongo.Client
	users  *mongo.Collection
}

func newMongoStore(ctx context.Context, uri, database string) (*mongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, unavailable("connecting", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, unavailable("pinging", err)
	}

	users := client.Database(database).Collection("users")

	_, err = users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "account_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, unavailable("ensuring account index", err)
	}

	return &mongoStore{client: client, users: users}, nil
}

func (s *mongoStore) Kind() string { return "mongo" }

func (s *mongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *mongoStore) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	result := s.users.FindOne(ctx, filter)
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, unavailable("querying user", err)
	}
	user := &model.User{}
	if err := result.Decode(user); err != nil {
		return nil, malformed("decoding user", err)
	}
	return user, nil
}

func (s *mongoStore) ByAccountID(ctx context.Context, accountID string) (*model.User, error) {
	return s.findOne(ctx, bson.M{"account_id": accountID})
}

func (s *mongoStore) BySessionToken(ctx context.Context, token string) (*model.User, error) {
	return s.findOne(ctx, bson.M{"session_token": token})
}

func (s *mongoStore) ByResetToken(ctx context.Context, token string) (*model.User, error) {
	user, err := s.findOne(ctx, bson.M{"reset_token": token})
	if err != nil {
		return nil, err
	}
	if !user.HasValidReset(time.Now()) {
		return nil, ErrNotFound
	}
	return user, nil
}

func (s *mongoStore) ByEmail(ctx context.Context, email string) (*model.User, error) {
	pattern := primitive.Regex{Pattern: "^" + regexp.QuoteMeta(email) + "$", Options: "i"}
	return s.findOne(ctx, bson.M{"email": pattern})
}

func (s *mongoStore) Insert(ctx context.Context, user *model.User) error {
	if user.PurchasedPackages == nil {
		user.PurchasedPackages = model.PackageList{}
	}
	if user.Withdrawals == nil {
		user.Withdrawals = []model.Withdrawal{}
	}

	_, err := s.users.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", ErrConflict, user.AccountID)
	}
	if err != nil {
		return unavailable("inserting user", err)
	}
	return nil
}

func (s *mongoStore) UpdateFields(ctx context.Context, accountID string, fields Fields) error {
	normalized, err := Normalize(fields)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(normalized) == 0 {
		_, err := s.ByAccountID(ctx, accountID)
		return err
	}

	set := bson.M{}
	for key, value := range normalized {
		switch v := value.(type) {
		case *time.Time:
			if v == nil {
				set[key] = nil
			} else {
				set[key] = *v
			}
		case model.PackageList:
			set[key] = []string(v)
		default:
			set[key] = value
		}
	}

	result, err := s.users.UpdateOne(ctx, bson.M{"account_id": accountID}, bson.M{"$set": set})
	if err != nil {
		return unavailable("updating user", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoStore) All(ctx context.Context) ([]model.User, error) {
	cursor, err := s.users.Find(ctx, bson.M{})
	if err != nil {
		return nil, unavailable("listing users", err)
	}
	defer cursor.Close(ctx)

	users := []model.User{}
	for cursor.Next(ctx) {
		user := model.User{}
		if err := cursor.Decode(&user); err != nil {
			return nil, malformed("decoding user", err)
		}
		users = append(users, user)
	}
	if err := cursor.Err(); err != nil {
		return nil, unavailable("listing users", err)
	}
	return users, nil
}
