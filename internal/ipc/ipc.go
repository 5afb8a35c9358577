// Package ipc is the daemon's local control channel: a unix socket taking
// one JSON command per connection. saathi-ctl is its only intended client.
package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
)

const DefaultSocketPath = "/tmp/saathi.sock"

type ControlMessage struct {
	Cmd string `json:"cmd"`
}

type Reply struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// StartServer listens on socketPath and dispatches each command to handler.
// The returned closer stops the listener and removes the socket file.
func StartServer(socketPath string, handler func(ControlMessage) Reply) (func(), error) {
	os.Remove(socketPath)

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handleConn(conn, handler)
		}
	}()

	closer := func() {
		ln.Close()
		os.Remove(socketPath)
	}
	return closer, nil
}

func handleConn(conn net.Conn, handler func(ControlMessage) Reply) {
	defer conn.Close()

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		return
	}

	rep := handler(msg)
	json.NewEncoder(conn).Encode(rep)
}

// Send delivers one command to a running daemon and returns its reply.
func Send(socketPath, cmd string) (Reply, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return Reply{}, err
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(ControlMessage{Cmd: cmd}); err != nil {
		return Reply{}, err
	}

	var rep Reply
	if err := json.NewDecoder(conn).Decode(&rep); err != nil {
		return Reply{}, err
	}
	return rep, nil
}
