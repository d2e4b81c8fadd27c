package aging

import (
	"context"

	"golang.org/x/sync/singleflight"
)

var buildGroup singleflight.Group

func singleflightBuild(ctx context.Context, key string, fn func(context.Context) ([]Row, error)) ([]Row, error) {
	ch := buildGroup.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Row), nil
	}
}
