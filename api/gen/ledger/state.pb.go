package ledger

import "encoding/json"

type GetLedgerEndRequest struct{}

type GetLedgerEndResponse struct {
	Offset int64 `protobuf:"varint,1,opt,name=offset,proto3" json:"offset"`
}

type GetActiveContractsRequest struct {
	Filter         *TransactionFilter `protobuf:"bytes,1,opt,name=filter,proto3" json:"filter,omitempty"`
	Verbose        bool               `protobuf:"varint,2,opt,name=verbose,proto3" json:"verbose"`
	ActiveAtOffset int64              `protobuf:"varint,3,opt,name=active_at_offset,proto3" json:"activeAtOffset"`
}

type GetActiveContractsResponse struct {
	WorkflowID     string          `protobuf:"bytes,1,opt,name=workflow_id,proto3" json:"workflowId,omitempty"`
	ActiveContract *ActiveContract `protobuf:"bytes,2,opt,name=active_contract,proto3,oneof" json:"activeContract,omitempty"`
}

type TransactionFilter struct {
	FiltersByParty map[string]*Filters `protobuf:"bytes,1,rep,name=filters_by_party,proto3" json:"filtersByParty"`
}

type Filters struct {
	Cumulative []*CumulativeFilter `protobuf:"bytes,1,rep,name=cumulative,proto3" json:"cumulative"`
}

// CumulativeFilter is a oneof: exactly one of the fields is set.
type CumulativeFilter struct {
	WildcardFilter  *WildcardFilter  `protobuf:"bytes,1,opt,name=wildcard_filter,proto3,oneof" json:"wildcardFilter,omitempty"`
	InterfaceFilter *InterfaceFilter `protobuf:"bytes,2,opt,name=interface_filter,proto3,oneof" json:"interfaceFilter,omitempty"`
	TemplateFilter  *TemplateFilter  `protobuf:"bytes,3,opt,name=template_filter,proto3,oneof" json:"templateFilter,omitempty"`
}

type WildcardFilter struct {
	IncludeCreatedEventBlob bool `protobuf:"varint,1,opt,name=include_created_event_blob,proto3" json:"includeCreatedEventBlob"`
}

type InterfaceFilter struct {
	InterfaceID             string `protobuf:"bytes,1,opt,name=interface_id,proto3" json:"interfaceId"`
	IncludeInterfaceView    bool   `protobuf:"varint,2,opt,name=include_interface_view,proto3" json:"includeInterfaceView"`
	IncludeCreatedEventBlob bool   `protobuf:"varint,3,opt,name=include_created_event_blob,proto3" json:"includeCreatedEventBlob"`
}

type TemplateFilter struct {
	TemplateID              string `protobuf:"bytes,1,opt,name=template_id,proto3" json:"templateId"`
	IncludeCreatedEventBlob bool   `protobuf:"varint,2,opt,name=include_created_event_blob,proto3" json:"includeCreatedEventBlob"`
}

type ActiveContract struct {
	CreatedEvent        *CreatedEvent `protobuf:"bytes,1,opt,name=created_event,proto3" json:"createdEvent,omitempty"`
	SynchronizerID      string        `protobuf:"bytes,2,opt,name=synchronizer_id,proto3" json:"synchronizerId,omitempty"`
	ReassignmentCounter uint64        `protobuf:"varint,3,opt,name=reassignment_counter,proto3" json:"reassignmentCounter"`
}

type CreatedEvent struct {
	Offset           int64            `protobuf:"varint,1,opt,name=offset,proto3" json:"offset"`
	NodeID           int32            `protobuf:"varint,2,opt,name=node_id,proto3" json:"nodeId"`
	ContractID       string           `protobuf:"bytes,3,opt,name=contract_id,proto3" json:"contractId"`
	TemplateID       string           `protobuf:"bytes,4,opt,name=template_id,proto3" json:"templateId"`
	CreatedEventBlob []byte           `protobuf:"bytes,5,opt,name=created_event_blob,proto3" json:"createdEventBlob,omitempty"`
	InterfaceViews   []*InterfaceView `protobuf:"bytes,6,rep,name=interface_views,proto3" json:"interfaceViews,omitempty"`
	Signatories      []string         `protobuf:"bytes,7,rep,name=signatories,proto3" json:"signatories,omitempty"`
	Observers        []string         `protobuf:"bytes,8,rep,name=observers,proto3" json:"observers,omitempty"`
	PackageName      string           `protobuf:"bytes,9,opt,name=package_name,proto3" json:"packageName,omitempty"`
}

// InterfaceView carries the view value as raw JSON so that callers decide how
// to interpret it.
type InterfaceView struct {
	InterfaceID string          `protobuf:"bytes,1,opt,name=interface_id,proto3" json:"interfaceId"`
	ViewStatus  *Status         `protobuf:"bytes,2,opt,name=view_status,proto3" json:"viewStatus,omitempty"`
	ViewValue   json.RawMessage `protobuf:"bytes,3,opt,name=view_value,proto3" json:"viewValue,omitempty"`
}

type Status struct {
	Code    int32  `protobuf:"varint,1,opt,name=code,proto3" json:"code"`
	Message string `protobuf:"bytes,2,opt,name=message,proto3" json:"message,omitempty"`
}
