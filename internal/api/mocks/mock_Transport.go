// Package mocks provides test doubles for the api transport.
package mocks

import (
	"context"

	api "github.com/colthorp/proximity-cli/internal/api"
	mock "github.com/stretchr/testify/mock"
)

// MockTransport is a mock type for the Transport interface.
type MockTransport struct {
	mock.Mock
}

// Geocode provides a mock function with given fields: ctx, address
func (_m *MockTransport) Geocode(ctx context.Context, address string) (*api.GeocodeResponse, error) {
	ret := _m.Called(ctx, address)

	if len(ret) == 0 {
		panic("no return value specified for Geocode")
	}

	var r0 *api.GeocodeResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*api.GeocodeResponse, error)); ok {
		return rf(ctx, address)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *api.GeocodeResponse); ok {
		r0 = rf(ctx, address)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*api.GeocodeResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, address)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NearbySearch provides a mock function with given fields: ctx, req
func (_m *MockTransport) NearbySearch(ctx context.Context, req api.NearbyRequest) (*api.PlaceSearchResponse, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for NearbySearch")
	}

	var r0 *api.PlaceSearchResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, api.NearbyRequest) (*api.PlaceSearchResponse, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, api.NearbyRequest) *api.PlaceSearchResponse); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*api.PlaceSearchResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, api.NearbyRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// DistanceMatrix provides a mock function with given fields: ctx, req
func (_m *MockTransport) DistanceMatrix(ctx context.Context, req api.DistanceRequest) (*api.DistanceMatrixResponse, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for DistanceMatrix")
	}

	var r0 *api.DistanceMatrixResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, api.DistanceRequest) (*api.DistanceMatrixResponse, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, api.DistanceRequest) *api.DistanceMatrixResponse); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*api.DistanceMatrixResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, api.DistanceRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockTransport creates a new instance of MockTransport.
func NewMockTransport(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockTransport {
	mock := &MockTransport{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
