package cp

import "fmt"

// State CP 状态 (IEEE 802.1X-2010 图 12-2)
type State int

const (
	StateInit State = iota
	StateChange
	StateAllowed
	StateAuthenticated
	StateSecured
	StateReceive
	StateReceiving
	StateReady
	StateTransmit
	StateTransmitting
	StateAbandon
	StateRetire
)

var stateNames = [...]string{
	StateInit:          "INIT",
	StateChange:        "CHANGE",
	StateAllowed:       "ALLOWED",
	StateAuthenticated: "AUTHENTICATED",
	StateSecured:       "SECURED",
	StateReceive:       "RECEIVE",
	StateReceiving:     "RECEIVING",
	StateReady:         "READY",
	StateTransmit:      "TRANSMIT",
	StateTransmitting:  "TRANSMITTING",
	StateAbandon:       "ABANDON",
	StateRetire:        "RETIRE",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Connect KaY 给出的连接模式
type Connect int

const (
	ConnectPending Connect = iota
	ConnectUnauthenticated
	ConnectAuthenticated
	ConnectSecure
)

func (c Connect) String() string {
	switch c {
	case ConnectPending:
		return "PENDING"
	case ConnectUnauthenticated:
		return "UNAUTHENTICATED"
	case ConnectAuthenticated:
		return "AUTHENTICATED"
	case ConnectSecure:
		return "SECURE"
	default:
		return fmt.Sprintf("Connect(%d)", int(c))
	}
}
