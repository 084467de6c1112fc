package output

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/proto"

	"github.com/norasector/tetramon/pkg/tetra"
	"github.com/norasector/tetramon/pkg/tetramon/config"
)

const receiveChannels = 8

// MessageUDPOutput sends each message as a protobuf Struct prefixed with
// its uint16 little-endian length.
type MessageUDPOutput struct {
	dests    []config.OutputDestination
	recvChan chan *tetra.MessageRecord
	metrics  api.WriteAPI
}

func NewMessageUDPOutput(dests []config.OutputDestination, metrics api.WriteAPI) *MessageUDPOutput {
	return &MessageUDPOutput{
		dests:    dests,
		recvChan: make(chan *tetra.MessageRecord, receiveChannels),
		metrics:  metrics,
	}
}

func (s *MessageUDPOutput) Receive() chan<- *tetra.MessageRecord {
	return s.recvChan
}

// Frame encodes rec as it is written to the wire.
func Frame(rec *tetra.MessageRecord) ([]byte, error) {
	pb, err := ToProtobuf(rec)
	if err != nil {
		return nil, err
	}
	encoded, err := proto.Marshal(pb)
	if err != nil {
		return nil, err
	}
	if len(encoded) > 0xffff {
		return nil, fmt.Errorf("encoded message too long: %d bytes", len(encoded))
	}

	var msgBuf bytes.Buffer
	if err := binary.Write(&msgBuf, binary.LittleEndian, uint16(len(encoded))); err != nil {
		return nil, err
	}
	msgBuf.Write(encoded)
	return msgBuf.Bytes(), nil
}

func (s *MessageUDPOutput) Start(ctx context.Context) error {
	destAddrs := make([]*net.UDPAddr, 0, len(s.dests))
	for _, dest := range s.dests {
		ips, err := net.LookupIP(dest.Host)
		if err != nil {
			return err
		}
		if len(ips) == 0 {
			return fmt.Errorf("no IPs returned for %s", dest.Host)
		}

		destAddr := &net.UDPAddr{IP: ips[0], Port: dest.Port}
		destAddrs = append(destAddrs, destAddr)
		log.Info().IPAddr("dest_ip", destAddr.IP).Int("port", dest.Port).Msg("message output starting")
	}

	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			// flush what the monitor handed over before shutting down
			for {
				select {
				case rec := <-s.recvChan:
					s.send(conn, destAddrs, rec)
				default:
					return ctx.Err()
				}
			}
		case rec := <-s.recvChan:
			s.send(conn, destAddrs, rec)
		}
	}
}

func (s *MessageUDPOutput) send(conn *net.UDPConn, destAddrs []*net.UDPAddr, rec *tetra.MessageRecord) {
	frame, err := Frame(rec)
	if err != nil {
		log.Warn().Err(err).Str("id", rec.ID).Msg("error encoding message")
		return
	}

	sent := 0
	var bytesWritten int
	for _, destAddr := range destAddrs {
		n, err := conn.WriteToUDP(frame, destAddr)
		if err != nil {
			log.Error().Err(err).Msg("error writing")
			continue
		}
		bytesWritten += n
		sent++
	}

	go s.metrics.WritePoint(influxdb2.NewPoint("message.sent_frame",
		map[string]string{
			"kind":      rec.Kind,
			"encrypted": fmt.Sprint(rec.Encrypted),
		},
		map[string]interface{}{
			"bytes_written": bytesWritten,
			"frame_length":  len(frame),
			"sent":          sent,
			"dropped":       len(destAddrs) - sent,
		}, time.Now()))
}
