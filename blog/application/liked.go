package application

import (
	"context"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dfryer1193/racblog/shared/kv"
)

const likedKeyPrefix = "liked_posts:"

// LikedSet records which posts each visitor has liked. It is keyed by an
// opaque visitor id and is only as strong as that id is hard to forge.
type LikedSet struct {
	kv kv.Store
}

func NewLikedSet(store kv.Store) *LikedSet {
	return &LikedSet{kv: store}
}

func (l *LikedSet) load(ctx context.Context, visitorID string) (mapset.Set[string], error) {
	var ids []string
	if _, err := kv.GetJSON(ctx, l.kv, likedKeyPrefix+visitorID, &ids); err != nil {
		return nil, fmt.Errorf("failed to load liked posts: %w", err)
	}
	return mapset.NewThreadUnsafeSet(ids...), nil
}

// Has reports whether visitorID already liked postID.
func (l *LikedSet) Has(ctx context.Context, visitorID, postID string) (bool, error) {
	liked, err := l.load(ctx, visitorID)
	if err != nil {
		return false, err
	}
	return liked.ContainsOne(postID), nil
}

// Add records postID for visitorID. Adding twice is a no-op.
func (l *LikedSet) Add(ctx context.Context, visitorID, postID string) error {
	liked, err := l.load(ctx, visitorID)
	if err != nil {
		return err
	}
	if !liked.Add(postID) {
		return nil
	}
	if err := kv.SetJSON(ctx, l.kv, likedKeyPrefix+visitorID, mapset.Sorted(liked)); err != nil {
		return fmt.Errorf("failed to save liked posts: %w", err)
	}
	return nil
}
