package protocol

// Client to service opcodes. Each carries a request id in RequestID.
const (
	ClientMsgRegister               = 1 // Arg: client version
	ClientMsgUnregister             = 2
	ClientMsgCreateRouteController  = 3 // Arg: controller id, Payload: {routeId}
	ClientMsgReleaseRouteController = 4 // Arg: controller id
	ClientMsgSelectRoute            = 5 // Arg: controller id
	ClientMsgUnselectRoute          = 6 // Arg: controller id
	ClientMsgSetRouteVolume         = 7 // Arg: controller id, Payload: {volume}
	ClientMsgUpdateRouteVolume      = 8 // Arg: controller id, Payload: {volume} as a delta
	ClientMsgRouteControlRequest    = 9 // Arg: controller id, Payload: *channel.ControlRequest
)

// Service to client opcodes.
const (
	ServiceMsgGenericFailure    = 0 // RequestID
	ServiceMsgGenericSuccess    = 1 // RequestID
	ServiceMsgRegistered        = 2 // RequestID, Arg: service version, Payload: descriptor
	ServiceMsgDescriptorChanged = 3 // Payload: descriptor
	ServiceMsgControlResult     = 4 // RequestID, Arg: result code, Payload: nil or result data
)

// Protocol versions.
const (
	ClientVersion1       = 1
	ClientVersionCurrent = ClientVersion1

	// ServiceVersion1 is the minimum service version a client accepts.
	ServiceVersion1 = 1
)

// Payload keys.
const (
	ClientDataRouteID = "routeId"
	ClientDataVolume  = "volume"
)

// OpName returns a readable name for a client opcode, for logging.
func OpName(what int) string {
	switch what {
	case ClientMsgRegister:
		return "register"
	case ClientMsgUnregister:
		return "unregister"
	case ClientMsgCreateRouteController:
		return "create_route_controller"
	case ClientMsgReleaseRouteController:
		return "release_route_controller"
	case ClientMsgSelectRoute:
		return "select_route"
	case ClientMsgUnselectRoute:
		return "unselect_route"
	case ClientMsgSetRouteVolume:
		return "set_route_volume"
	case ClientMsgUpdateRouteVolume:
		return "update_route_volume"
	case ClientMsgRouteControlRequest:
		return "route_control_request"
	default:
		return "unknown"
	}
}
