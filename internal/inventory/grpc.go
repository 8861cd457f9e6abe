package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"pcicam/pkg/types"
)

const (
	serviceName       = "pcicam.v1.Inventory"
	listDevicesMethod = "/" + serviceName + "/ListDevices"
	rescanMethod      = "/" + serviceName + "/Rescan"
)

// InventoryServer is the server API of the inventory service
type InventoryServer interface {
	ListDevices(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Rescan(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// Server exposes an Inventory over gRPC
type Server struct {
	inv *Inventory
}

// NewServer wraps inv
func NewServer(inv *Inventory) *Server {
	return &Server{inv: inv}
}

// ListDevices returns the last completed pass
func (s *Server) ListDevices(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap := s.inv.Last()
	devices, err := toValues(snap.Devices)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode devices: %v", err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"devices":    structpb.NewListValue(devices),
		"count":      structpb.NewNumberValue(float64(len(snap.Devices))),
		"scanned_at": structpb.NewStringValue(formatTime(snap.ScannedAt)),
	}}, nil
}

// Rescan runs a new pass and reports its size
func (s *Server) Rescan(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap := s.inv.Rescan()
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"count":            structpb.NewNumberValue(float64(len(snap.Devices))),
		"functions_probed": structpb.NewNumberValue(float64(snap.Stats.FunctionsProbed)),
		"duration_ms":      structpb.NewNumberValue(float64(snap.Stats.Duration.Milliseconds())),
		"scanned_at":       structpb.NewStringValue(formatTime(snap.ScannedAt)),
	}}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// toValues converts records through their JSON form so the wire shape
// matches `pcicam scan --format json`.
func toValues(devices []types.DiscoveredDevice) (*structpb.ListValue, error) {
	data, err := json.Marshal(devices)
	if err != nil {
		return nil, err
	}
	var generic []interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return structpb.NewList(generic)
}

func listDevicesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServer).ListDevices(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listDevicesMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InventoryServer).ListDevices(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func rescanHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServer).Rescan(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: rescanMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InventoryServer).Rescan(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes pcicam.v1.Inventory. Messages are protobuf
// well-known types, so no generated code is involved.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*InventoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListDevices", Handler: listDevicesHandler},
		{MethodName: "Rescan", Handler: rescanHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pcicam/v1/inventory.proto",
}

// RegisterInventoryServer registers srv on s
func RegisterInventoryServer(s grpc.ServiceRegistrar, srv InventoryServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Record is a discovered function as seen by a client
type Record struct {
	Address       string               `json:"address"`
	Kind          types.HeaderKind     `json:"kind"`
	Multifunction bool                 `json:"multifunction"`
	Header        types.FunctionHeader `json:"header"`
	Variant       json.RawMessage      `json:"variant"`
}

// Client calls the inventory service
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// ListDevices fetches the server's last pass
func (c *Client) ListDevices(ctx context.Context, opts ...grpc.CallOption) ([]Record, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listDevicesMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}

	list := out.GetFields()["devices"].GetListValue()
	if list == nil {
		return nil, nil
	}
	data, err := list.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode devices: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode devices: %w", err)
	}
	return records, nil
}

// Rescan asks the server for a fresh pass and returns the number of
// functions it found.
func (c *Client) Rescan(ctx context.Context, opts ...grpc.CallOption) (int, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, rescanMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return 0, err
	}
	return int(out.GetFields()["count"].GetNumberValue()), nil
}
