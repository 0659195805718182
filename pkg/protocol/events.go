// Package protocol names the events exchanged between drawing board clients
// and the server. Every frame is a JSON text message with a "type" field.
//
// Client -> Server
//
//	joined:           name: string
//	new-path:         position: {x, y}, color: {red, green, blue[, alpha]}, weight: number
//	drawing-position: position: {x, y}
//	fill:             fill: {position: {x, y}, color: {...}}
//	reset:            {}
//	undo:             {}
//
// Server -> Client
//
//	welcome:          settings: {canvasWidth, canvasHeight, weightSliderMinimum,
//	                  weightSliderMaximum, weightSliderDefault},
//	                  users: {[id]: name},
//	                  instructions: [{type: 0, value: stroke} | {type: 1, value: fill}]
//	                  (omitted when the board is empty)
//	user-joined:      id: string, name: string
//	user-left:        id: string
//	new-path:         as above, weight clamped by the server
//	drawing-position: as above
//	fill:             as above
//	reset, undo:      {}
//	error:            error: string
//
// Draw events are only sent to clients other than the one that caused them;
// the sender has already drawn the change locally.
package protocol

const (
	EventJoined          = "joined"
	EventWelcome         = "welcome"
	EventUserJoined      = "user-joined"
	EventUserLeft        = "user-left"
	EventNewPath         = "new-path"
	EventDrawingPosition = "drawing-position"
	EventFill            = "fill"
	EventReset           = "reset"
	EventUndo            = "undo"
	EventError           = "error"
)
