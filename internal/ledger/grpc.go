package ledger

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	ledgerpb "github.com/example/token-transfer/api/gen/ledger"
	"github.com/example/token-transfer/internal/failure"
)

// GRPCQuerier reads ledger state through the StateService gRPC API.
type GRPCQuerier struct {
	client ledgerpb.StateServiceClient
}

func NewGRPCQuerier(cc grpc.ClientConnInterface) *GRPCQuerier {
	return &GRPCQuerier{client: ledgerpb.NewStateServiceClient(cc)}
}

// Dial opens a client connection to target. A nil tlsCfg dials in plaintext.
func Dial(target string, tlsCfg *tls.Config, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	creds := insecure.NewCredentials()
	if tlsCfg != nil {
		creds = credentials.NewTLS(tlsCfg)
	}
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, opts...)

	conn, err := grpc.Dial(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial ledger %s: %w", target, err)
	}
	return conn, nil
}

func (q *GRPCQuerier) LedgerEnd(ctx context.Context, accessToken string) (Offset, error) {
	const op = "ledger end"

	resp, err := q.client.GetLedgerEnd(withBearer(ctx, accessToken), &ledgerpb.GetLedgerEndRequest{})
	if err != nil {
		return "", grpcError(op, err)
	}
	return OffsetFromInt(resp.Offset), nil
}

func (q *GRPCQuerier) ActiveContracts(ctx context.Context, query ActiveContractsQuery) ([]ActiveContract, error) {
	const op = "active contracts"

	offset, err := query.Offset.Int64()
	if err != nil {
		return nil, &failure.ProtocolError{Op: op, Err: err}
	}
	cumulative, err := cumulativeFor(query.Filter)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(withBearer(ctx, query.AccessToken))
	defer cancel()

	stream, err := q.client.GetActiveContracts(ctx, &ledgerpb.GetActiveContractsRequest{
		Filter: &ledgerpb.TransactionFilter{
			FiltersByParty: map[string]*ledgerpb.Filters{
				query.Party: {Cumulative: []*ledgerpb.CumulativeFilter{cumulative}},
			},
		},
		ActiveAtOffset: offset,
	})
	if err != nil {
		return nil, grpcError(op, err)
	}

	var contracts []ActiveContract
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, grpcError(op, err)
		}
		if msg.ActiveContract == nil {
			continue
		}
		c, err := fromProto(msg.ActiveContract)
		if err != nil {
			return nil, &failure.ProtocolError{Op: op, Err: err}
		}
		contracts = append(contracts, c)
	}
	return contracts, nil
}

func cumulativeFor(f Filter) (*ledgerpb.CumulativeFilter, error) {
	switch f := f.(type) {
	case InterfaceFilter:
		return &ledgerpb.CumulativeFilter{InterfaceFilter: &ledgerpb.InterfaceFilter{
			InterfaceID:             f.InterfaceID,
			IncludeInterfaceView:    f.IncludeInterfaceView,
			IncludeCreatedEventBlob: f.IncludeCreatedEventBlob,
		}}, nil
	case TemplateFilter:
		return &ledgerpb.CumulativeFilter{TemplateFilter: &ledgerpb.TemplateFilter{
			TemplateID:              f.TemplateID,
			IncludeCreatedEventBlob: f.IncludeCreatedEventBlob,
		}}, nil
	case WildcardFilter:
		return &ledgerpb.CumulativeFilter{WildcardFilter: &ledgerpb.WildcardFilter{
			IncludeCreatedEventBlob: f.IncludeCreatedEventBlob,
		}}, nil
	}
	return nil, fmt.Errorf("%w: unsupported filter %T", failure.ErrInvalidInput, f)
}

func withBearer(ctx context.Context, accessToken string) context.Context {
	if accessToken == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+accessToken)
}

func grpcError(op string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return &failure.TransportError{Op: op, Err: err}
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return &failure.AuthError{Op: op, Err: err}
	case codes.Canceled:
		return &failure.TransportError{Op: op, Err: fmt.Errorf("%w: %v", context.Canceled, err)}
	case codes.DeadlineExceeded:
		return &failure.TransportError{Op: op, Err: fmt.Errorf("%w: %v", context.DeadlineExceeded, err)}
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
		return &failure.TransportError{Op: op, Err: err}
	}
	return &failure.ProtocolError{Op: op, Err: err}
}
