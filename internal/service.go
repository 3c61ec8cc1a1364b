package internal

import (
	"context"

	"github.com/rm-hull/http-service/internal/models"
)

// ServiceGroup binds a base path to a set of related endpoints, e.g. a
// "/users" group whose Get(ctx, "/:id", ...) calls "/users/:id".
type ServiceGroup struct {
	BasePath string
	svc      *HttpService
}

func NewServiceGroup(svc *HttpService, basePath string) *ServiceGroup {
	return &ServiceGroup{BasePath: basePath, svc: svc}
}

func (g *ServiceGroup) Send(ctx context.Context, method models.Method, path string, opts *models.QueryOptions) models.Result[any] {
	return g.svc.Send(ctx, method, g.BasePath+path, opts)
}

func (g *ServiceGroup) Get(ctx context.Context, path string, opts *models.QueryOptions) models.Result[any] {
	return g.Send(ctx, models.MethodGet, path, opts)
}

func (g *ServiceGroup) Post(ctx context.Context, path string, opts *models.QueryOptions) models.Result[any] {
	return g.Send(ctx, models.MethodPost, path, opts)
}

func (g *ServiceGroup) Put(ctx context.Context, path string, opts *models.QueryOptions) models.Result[any] {
	return g.Send(ctx, models.MethodPut, path, opts)
}

func (g *ServiceGroup) Patch(ctx context.Context, path string, opts *models.QueryOptions) models.Result[any] {
	return g.Send(ctx, models.MethodPatch, path, opts)
}

func (g *ServiceGroup) Delete(ctx context.Context, path string, opts *models.QueryOptions) models.Result[any] {
	return g.Send(ctx, models.MethodDelete, path, opts)
}
