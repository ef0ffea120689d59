package mongodb

import (
	"context"
	"fmt"
	"time"

	"ridepool/internal/models"
	"ridepool/internal/repositories/interfaces"
	"ridepool/internal/services"
	"ridepool/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// rideCacheTTL bounds how stale a cached ride may be. The access guard reads
// rides on every chat action, so the TTL stays short and every passenger
// mutation invalidates the entry.
const rideCacheTTL = 30 * time.Second

type rideRepository struct {
	collection *mongo.Collection
	cache      services.CacheService
}

func NewRideRepository(db *mongo.Database, cache services.CacheService) interfaces.RideRepository {
	return &rideRepository{
		collection: db.Collection("rides"),
		cache:      cache,
	}
}

func (r *rideRepository) Create(ctx context.Context, ride *models.Ride) error {
	ride.ID = primitive.NewObjectID()
	ride.CreatedAt = time.Now()
	ride.UpdatedAt = time.Now()
	if ride.Status == "" {
		ride.Status = models.RideStatusOpen
	}
	if ride.Passengers == nil {
		ride.Passengers = []models.Passenger{}
	}

	_, err := r.collection.InsertOne(ctx, ride)
	if err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}

	r.cacheRide(ctx, ride)

	return nil
}

func (r *rideRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	if ride := r.getRideFromCache(ctx, id.Hex()); ride != nil {
		return ride, nil
	}

	var ride models.Ride
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&ride)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}

	r.cacheRide(ctx, &ride)

	return &ride, nil
}

func (r *rideRepository) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()

	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": updates},
	)
	if err != nil {
		return fmt.Errorf("failed to update ride: %w", err)
	}

	r.invalidateRideCache(ctx, id.Hex())

	return nil
}

func (r *rideRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete ride: %w", err)
	}

	r.invalidateRideCache(ctx, id.Hex())

	return nil
}

func (r *rideRepository) AddPassenger(ctx context.Context, rideID, userID primitive.ObjectID) error {
	// Re-joining flips an existing "left" entry back to "joined" so the
	// original joined_at survives a leave/re-join round trip.
	res, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": rideID, "passengers.user_id": userID},
		bson.M{
			"$set": bson.M{
				"passengers.$.status":  models.PassengerStatusJoined,
				"passengers.$.left_at": nil,
				"updated_at":           time.Now(),
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to re-join passenger: %w", err)
	}

	if res.MatchedCount == 0 {
		passenger := models.Passenger{
			UserID:   userID,
			Status:   models.PassengerStatusJoined,
			JoinedAt: time.Now(),
		}

		_, err = r.collection.UpdateOne(
			ctx,
			bson.M{"_id": rideID},
			bson.M{
				"$push": bson.M{"passengers": passenger},
				"$set":  bson.M{"updated_at": time.Now()},
			},
		)
		if err != nil {
			return fmt.Errorf("failed to add passenger: %w", err)
		}
	}

	r.invalidateRideCache(ctx, rideID.Hex())

	return nil
}

func (r *rideRepository) SetPassengerStatus(ctx context.Context, rideID, userID primitive.ObjectID, status models.PassengerStatus) error {
	set := bson.M{
		"passengers.$.status": status,
		"updated_at":          time.Now(),
	}
	if status == models.PassengerStatusLeft {
		set["passengers.$.left_at"] = time.Now()
	}

	res, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": rideID, "passengers.user_id": userID},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("failed to set passenger status: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("passenger not found on ride")
	}

	r.invalidateRideCache(ctx, rideID.Hex())

	return nil
}

func (r *rideRepository) GetByPoster(ctx context.Context, posterID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	return r.findRidesWithFilter(ctx, bson.M{"poster_id": posterID}, params)
}

func (r *rideRepository) GetByCohort(ctx context.Context, cohortKey string, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	return r.findRidesWithFilter(ctx, bson.M{"cohort_key": cohortKey}, params)
}

func (r *rideRepository) findRidesWithFilter(ctx context.Context, filter bson.M, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count rides: %w", err)
	}

	cursor, err := r.collection.Find(ctx, filter, params.GetSortOptions())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find rides: %w", err)
	}
	defer cursor.Close(ctx)

	var rides []*models.Ride
	for cursor.Next(ctx) {
		var ride models.Ride
		if err := cursor.Decode(&ride); err != nil {
			return nil, 0, fmt.Errorf("failed to decode ride: %w", err)
		}
		rides = append(rides, &ride)
	}

	return rides, total, nil
}

// Cache operations
func (r *rideRepository) cacheRide(ctx context.Context, ride *models.Ride) {
	if r.cache != nil {
		cacheKey := utils.CacheRidePrefix + ride.ID.Hex()
		r.cache.Set(ctx, cacheKey, ride, rideCacheTTL)
	}
}

func (r *rideRepository) getRideFromCache(ctx context.Context, rideID string) *models.Ride {
	if r.cache == nil {
		return nil
	}

	var ride models.Ride
	if err := r.cache.Get(ctx, utils.CacheRidePrefix+rideID, &ride); err != nil {
		return nil
	}

	return &ride
}

func (r *rideRepository) invalidateRideCache(ctx context.Context, rideID string) {
	if r.cache != nil {
		r.cache.Delete(ctx, utils.CacheRidePrefix+rideID)
	}
}
