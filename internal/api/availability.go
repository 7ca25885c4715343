package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"stayhub/internal/models"
	"stayhub/internal/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	availabilityServiceName = "stayhub.availability.v1.AvailabilityService"
	methodCheckAvailability = "/" + availabilityServiceName + "/CheckAvailability"
	methodCalculatePrice    = "/" + availabilityServiceName + "/CalculatePrice"
)

// AvailabilityServer answers partner availability and pricing queries. Messages
// are google.protobuf.Struct so clients need no generated stubs.
type AvailabilityServer interface {
	CheckAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CalculatePrice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type availabilityBackend interface {
	CheckAvailability(ctx context.Context, propertyID int64, checkIn, checkOut time.Time) (bool, error)
	CalculatePrice(ctx context.Context, propertyID int64, checkIn, checkOut time.Time, guestsCount int) (*service.Quote, error)
}

type AvailabilityService struct {
	reservations availabilityBackend
}

func NewAvailabilityService(reservations availabilityBackend) *AvailabilityService {
	return &AvailabilityService{reservations: reservations}
}

type stayQuery struct {
	propertyID  int64
	checkIn     time.Time
	checkOut    time.Time
	guestsCount int
}

func parseStayQuery(req *structpb.Struct) (stayQuery, error) {
	fields := req.GetFields()
	q := stayQuery{
		propertyID:  int64(fields["property_id"].GetNumberValue()),
		guestsCount: int(fields["guests_count"].GetNumberValue()),
	}
	if q.propertyID <= 0 {
		return q, status.Error(codes.InvalidArgument, "property_id is required")
	}

	var err error
	if q.checkIn, err = models.ParseDate(strings.TrimSpace(fields["check_in"].GetStringValue())); err != nil {
		return q, status.Error(codes.InvalidArgument, "invalid check_in; expected YYYY-MM-DD")
	}
	if q.checkOut, err = models.ParseDate(strings.TrimSpace(fields["check_out"].GetStringValue())); err != nil {
		return q, status.Error(codes.InvalidArgument, "invalid check_out; expected YYYY-MM-DD")
	}
	return q, nil
}

func (s *AvailabilityService) CheckAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	q, err := parseStayQuery(req)
	if err != nil {
		return nil, err
	}

	available, err := s.reservations.CheckAvailability(ctx, q.propertyID, q.checkIn, q.checkOut)
	if err != nil {
		return nil, grpcError(err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"property_id": q.propertyID,
		"check_in":    q.checkIn.Format(models.DateLayout),
		"check_out":   q.checkOut.Format(models.DateLayout),
		"available":   available,
	})
}

func (s *AvailabilityService) CalculatePrice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	q, err := parseStayQuery(req)
	if err != nil {
		return nil, err
	}
	if q.guestsCount <= 0 {
		q.guestsCount = 1
	}

	quote, err := s.reservations.CalculatePrice(ctx, q.propertyID, q.checkIn, q.checkOut, q.guestsCount)
	if err != nil {
		return nil, grpcError(err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"property_id":     quote.PropertyID,
		"check_in":        quote.CheckIn.Format(models.DateLayout),
		"check_out":       quote.CheckOut.Format(models.DateLayout),
		"nights":          quote.Nights,
		"price_per_night": quote.PricePerNight.StringFixed(2),
		"total":           quote.Total.StringFixed(2),
	})
}

// grpcError reuses the HTTP error taxonomy to choose a status code.
func grpcError(err error) error {
	appErr := toAppError(err)
	var code codes.Code
	switch appErr.HTTPStatus {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		code = codes.InvalidArgument
	case http.StatusUnauthorized:
		code = codes.Unauthenticated
	case http.StatusForbidden:
		code = codes.PermissionDenied
	case http.StatusNotFound:
		code = codes.NotFound
	case http.StatusConflict:
		code = codes.FailedPrecondition
	case http.StatusTooManyRequests:
		code = codes.ResourceExhausted
	default:
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, appErr.Message)
}

func registerAvailabilityServer(s grpc.ServiceRegistrar, srv AvailabilityServer) {
	s.RegisterService(&availabilityServiceDesc, srv)
}

var availabilityServiceDesc = grpc.ServiceDesc{
	ServiceName: availabilityServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CheckAvailability", Handler: checkAvailabilityHandler},
		{MethodName: "CalculatePrice", Handler: calculatePriceHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stayhub/availability/v1/availability.proto",
}

func checkAvailabilityHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AvailabilityServer).CheckAvailability(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodCheckAvailability}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AvailabilityServer).CheckAvailability(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func calculatePriceHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AvailabilityServer).CalculatePrice(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodCalculatePrice}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AvailabilityServer).CalculatePrice(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
