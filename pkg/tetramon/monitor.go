package tetramon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/tetramon/pkg/tetra"
	"github.com/norasector/tetramon/pkg/tetra/crypto"
	"github.com/norasector/tetramon/pkg/tetra/frame"
	"github.com/norasector/tetramon/pkg/tetra/mac"
	"github.com/norasector/tetramon/pkg/tetra/phy"
	"github.com/norasector/tetramon/pkg/tetra/sds"
	"github.com/norasector/tetramon/pkg/tetra/voice"
	"github.com/norasector/tetramon/pkg/tetramon/device"
	"github.com/norasector/tetramon/pkg/tetramon/status"
	"github.com/norasector/tetramon/pkg/util"
	"golang.org/x/sync/errgroup"
)

// Monitor runs the decode pipeline for one capture device: symbols are
// demapped and synchronised into bursts one at a time, signalling bursts
// are reassembled into messages and traffic bursts are formatted for the
// speech decoder. Encrypted messages are decrypted off the burst path.
type Monitor struct {
	device       device.Device
	opts         Options
	writeAPI     api.WriteAPI
	logger       zerolog.Logger
	engine       *crypto.Engine
	decoder      *sds.Decoder
	classifier   Classifier
	registry     *prometheus.Registry
	metrics      *metrics
	statusServer *status.Server

	demapper    *phy.Demapper
	assembler   *frame.BurstAssembler
	reassembler *mac.Reassembler
	current     *tetra.SymbolSegment

	segmentChan chan *tetra.SymbolSegment
	jobChan     chan decryptJob
	resultChan  chan decryptResult

	mu        sync.RWMutex
	sessionID string
	stats     tetra.Stats
	recent    []*tetra.MessageRecord

	cancel context.CancelFunc
	ctx    context.Context
}

func NewMonitor(dev device.Device, options Options, opts ...MonitorOption) (*Monitor, error) {
	if dev == nil {
		return nil, fmt.Errorf("must specify a capture device")
	}
	if options.SyncThreshold <= 0 {
		options.SyncThreshold = phy.DefaultSyncThreshold
	}
	if options.SyncHorizon <= 0 {
		options.SyncHorizon = phy.DefaultSyncHorizon
	}
	if options.FragmentTimeout <= 0 {
		options.FragmentTimeout = mac.DefaultFragmentTimeout
	}
	if options.MaxFragmentBuffers <= 0 {
		options.MaxFragmentBuffers = mac.DefaultMaxBuffers
	}
	if options.RecentMessages <= 0 {
		options.RecentMessages = defaultRecentMessages
	}
	if options.DecryptWorkers <= 0 {
		options.DecryptWorkers = defaultDecryptWorkers
	}
	if options.DecryptQueue <= 0 {
		options.DecryptQueue = defaultDecryptQueue
	}

	m := &Monitor{
		device:      dev,
		opts:        options,
		writeAPI:    &util.MockWriteAPI{}, // overwritten with option
		logger:      log.Logger,
		decoder:     sds.NewDecoder(),
		demapper:    phy.NewDemapper(),
		segmentChan: make(chan *tetra.SymbolSegment, 1),
		jobChan:     make(chan decryptJob, options.DecryptQueue),
		resultChan:  make(chan decryptResult, options.DecryptWorkers),
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	if m.engine == nil {
		engine, err := crypto.NewEngine(crypto.WithLogger(m.logger))
		if err != nil {
			return nil, err
		}
		m.engine = engine
	}
	if m.classifier == nil {
		m.classifier = NewSlotClassifier(options.TrafficTimeslots, options.Downlink)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.metrics = newMetrics(m.registry)

	m.assembler = frame.NewBurstAssembler(frame.BurstAssemblerConfig{
		SyncThreshold: options.SyncThreshold,
		SyncHorizon:   options.SyncHorizon,
		OnBurst:       m.handleBurst,
		OnSyncMiss:    m.handleSyncMiss,
		Logger:        m.logger,
	})
	m.reassembler = mac.NewReassembler(
		mac.WithTimeout(options.FragmentTimeout),
		mac.WithMaxBuffers(options.MaxFragmentBuffers),
		mac.WithLogger(m.logger),
	)

	if m.statusServer != nil {
		m.statusServer.SetSource(m)
	}

	return m, nil
}

func (m *Monitor) Stop() error {
	m.mu.RLock()
	cancel := m.cancel
	m.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	if m.statusServer != nil {
		m.statusServer.Stop(context.TODO())
	}
	return nil
}

// Start runs the session until the device is exhausted, ctx is cancelled
// or Stop is called. Incomplete messages are discarded when it returns.
func (m *Monitor) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	m.mu.Lock()
	m.ctx, m.cancel = context.WithCancel(ctx)
	cancel := m.cancel
	m.sessionID = uuid.NewString()
	m.stats = tetra.Stats{SessionID: m.sessionID, Started: time.Now().UTC()}
	m.recent = nil
	m.mu.Unlock()
	defer cancel()

	if err := m.device.Open(m.ctx); err != nil {
		return fmt.Errorf("opening device: %w", err)
	}
	defer m.device.Close()

	if m.opts.Frequency != 0 {
		if err := m.device.SetFrequency(m.opts.Frequency); err != nil {
			return fmt.Errorf("setting frequency: %w", err)
		}
	}

	if m.statusServer != nil {
		eg.Go(func() error {
			return m.statusServer.Run(m.ctx)
		})
	}

	for _, output := range m.opts.MessageOutputs {
		thisOutput := output
		eg.Go(func() error {
			return thisOutput.Start(m.ctx)
		})
	}
	for _, output := range m.opts.VoiceOutputs {
		thisOutput := output
		eg.Go(func() error {
			return thisOutput.Start(m.ctx)
		})
	}

	var workers sync.WaitGroup
	for i := 0; i < m.opts.DecryptWorkers; i++ {
		workers.Add(1)
		eg.Go(func() error {
			defer workers.Done()
			return m.decryptMessages()
		})
	}
	eg.Go(func() error {
		workers.Wait()
		close(m.resultChan)
		return nil
	})
	eg.Go(m.processDecryptResults)

	eg.Go(m.readSymbols)
	eg.Go(m.processSegments)

	m.logger.Info().
		Str("session", m.sessionID).
		Str("frequency", tetra.MHzToString(m.opts.Frequency)).
		Float64("sync_threshold", m.opts.SyncThreshold).
		Ints("traffic_timeslots", m.opts.TrafficTimeslots).
		Msg("Starting")

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (m *Monitor) readSymbols() error {
	defer close(m.segmentChan)
	for {
		seg, err := m.device.ReadSymbols(m.ctx)
		if err == io.EOF {
			m.logger.Info().Str("session", m.sessionID).Msg("capture ended")
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case <-m.ctx.Done():
			return m.ctx.Err()
		case m.segmentChan <- seg:
		}
	}
}

// processSegments is the only goroutine touching the demapper, assembler
// and reassembler.
func (m *Monitor) processSegments() error {
	defer close(m.jobChan)
	defer m.endSession()
	for {
		select {
		case <-m.ctx.Done():
			return m.ctx.Err()
		case seg, ok := <-m.segmentChan:
			if !ok {
				return nil
			}
			m.processSegment(seg)
		}
	}
}

func (m *Monitor) processSegment(seg *tetra.SymbolSegment) {
	m.current = seg
	bits := m.demapper.Work(seg.Data)
	invalid := m.demapper.TakeErrors()

	m.updateStats(func(s *tetra.Stats) {
		s.Symbols += int64(len(seg.Data))
		s.InvalidSymbols += int64(len(invalid))
	})
	m.metrics.symbols.Add(float64(len(seg.Data)))
	if len(invalid) > 0 {
		m.metrics.invalidSymbols.Add(float64(len(invalid)))
		m.logger.Debug().
			Int("segment", seg.SegmentNumber).
			Int("invalid", len(invalid)).
			Int("first_index", invalid[0].Index).
			Uint8("first_value", invalid[0].Value).
			Msg("invalid symbols")
	}

	if seg.Context != nil {
		m.assembler.SetContext(*seg.Context)
	}
	m.assembler.Receive(bits)
}

func (m *Monitor) handleSyncMiss(err *phy.SyncError) {
	m.updateStats(func(s *tetra.Stats) {
		s.SyncMisses++
	})
	m.metrics.syncMisses.Inc()
}

func (m *Monitor) handleBurst(p frame.BurstPacket) {
	// buffers idle past the timeout go before the new burst is applied
	m.handleEvents(m.reassembler.Sweep(p.Timestamp), p.Context)

	c := m.classifier.Classify(p.Context)
	payload := p.Burst.Payload()

	m.updateStats(func(s *tetra.Stats) {
		s.Bursts++
		s.LastBurst = p.Timestamp
		if c.Channel == tetra.ChannelTraffic {
			s.TrafficBursts++
		} else {
			s.ControlBursts++
		}
	})
	m.metrics.bursts.WithLabelValues(string(c.Channel)).Inc()
	m.metrics.syncConfidence.Observe(p.Confidence)

	go m.writeAPI.WritePoint(influxdb2.NewPoint("burst.received",
		map[string]string{
			"channel":   string(c.Channel),
			"timeslot":  strconv.Itoa(c.Timeslot),
			"frequency": tetra.MHzToString(m.frequency()),
		},
		map[string]interface{}{
			"index":      p.Index,
			"position":   p.Position,
			"confidence": p.Confidence,
		}, p.Timestamp))

	if c.Channel == tetra.ChannelTraffic {
		m.emitVoice(p, c, payload)
		return
	}

	// RESOURCE data doubles as a channel allocation; the reassembler only
	// sees it as the first fragment
	if pdu, err := mac.ParsePDU(payload); err == nil && pdu.Type == mac.PduResource {
		m.handleMetadata(pdu, c)
	}
	m.handleEvents(m.reassembler.HandlePayload(payload, p.Timestamp), c)
	m.metrics.fragmentBuffers.Set(float64(m.reassembler.Len()))
}

func (m *Monitor) handleEvents(events []mac.Event, c tetra.BurstContext) {
	for _, ev := range events {
		m.metrics.events.WithLabelValues(ev.Kind()).Inc()

		switch e := ev.(type) {
		case mac.CompleteMessage:
			m.handleComplete(e, c)

		case mac.OrphanFragment:
			m.updateStats(func(s *tetra.Stats) { s.OrphanFragments++ })
			m.logger.Debug().Str("key", e.Key.String()).Str("type", e.Type.String()).Msg("orphan fragment")

		case mac.FragmentTimeout:
			m.updateStats(func(s *tetra.Stats) { s.FragmentTimeouts++ })
			m.logger.Warn().
				Str("key", e.Key.String()).
				Int("fragments", e.Fragments).
				Int("bytes", e.Bytes).
				Dur("idle", e.Idle).
				Msg("fragment buffer timed out")

		case mac.FragmentDiscarded:
			m.updateStats(func(s *tetra.Stats) { s.DiscardedFragments++ })
			m.logger.Warn().
				Str("key", e.Key.String()).
				Str("reason", string(e.Reason)).
				Int("fragments", e.Fragments).
				Int("bytes", e.Bytes).
				Msg("fragment buffer discarded")

		case mac.BufferReplaced:
			m.updateStats(func(s *tetra.Stats) { s.ReplacedBuffers++ })
			m.logger.Debug().Str("key", e.Key.String()).Int("fragments", e.Fragments).Msg("fragment buffer replaced")

		case mac.MalformedPDU:
			m.updateStats(func(s *tetra.Stats) { s.MalformedPDUs++ })
			m.logger.Debug().Err(e.Err).Int("ts", c.Timeslot).Msg("malformed pdu")

		case mac.OpaquePDU:
			m.handleOpaque(e.PDU, c)
		}
	}
}

func (m *Monitor) handleOpaque(pdu *mac.PDU, c tetra.BurstContext) {
	m.updateStats(func(s *tetra.Stats) { s.OpaquePDUs++ })
	m.handleMetadata(pdu, c)
}

func (m *Monitor) handleMetadata(pdu *mac.PDU, c tetra.BurstContext) {
	switch md := mac.Metadata(pdu).(type) {
	case *mac.NetworkInfo:
		m.updateStats(func(s *tetra.Stats) {
			s.Network = &tetra.NetworkInfo{MCC: md.MCC, MNC: md.MNC, ColourCode: md.ColourCode}
		})
		m.logger.Debug().Int("mcc", md.MCC).Int("mnc", md.MNC).Int("colour_code", md.ColourCode).Msg("network broadcast")
	case *mac.CallSetup:
		m.logger.Info().
			Uint32("source", md.Source).
			Uint32("destination", md.Destination).
			Bool("voice", md.Voice).
			Bool("encrypted", md.Encrypted).
			Str("algorithm", md.Algorithm).
			Msg("call setup")
	case *mac.ResourceAssignment:
		m.updateStats(func(s *tetra.Stats) {
			s.ResourceAssignments++
			s.LastAssignment = &tetra.Assignment{
				Group:     md.Group,
				Talkgroup: md.Talkgroup,
				Channel:   md.Channel,
				Encrypted: md.Encrypted,
				Priority:  md.Priority,
				CallID:    md.CallID,
			}
		})
		m.logger.Debug().
			Bool("group", md.Group).
			Uint32("talkgroup", md.Talkgroup).
			Int("channel", md.Channel).
			Int("call_id", md.CallID).
			Msg("resource assignment")
	default:
		m.logger.Debug().Str("pdu", pdu.Name).Int("ts", c.Timeslot).Msg("unhandled pdu")
	}
}

func (m *Monitor) handleComplete(msg mac.CompleteMessage, c tetra.BurstContext) {
	rec := &tetra.MessageRecord{
		ID:          uuid.NewString(),
		SessionID:   m.sessionID,
		Timestamp:   msg.Completed,
		Frequency:   m.frequency(),
		Source:      msg.Key.Source,
		Destination: msg.Key.Destination,
		MessageID:   msg.Key.MessageID,
		Fragments:   msg.Fragments,
		Encrypted:   msg.Encrypted,
		Context:     c,
	}

	if !msg.Encrypted {
		m.decode(rec, msg.Data)
		m.emitMessage(rec)
		return
	}

	m.updateStats(func(s *tetra.Stats) { s.Encrypted++ })
	job := decryptJob{
		record:     rec,
		ciphertext: msg.Data,
		mode:       msg.EncryptionMode,
		iv:         crypto.IV(c),
	}
	select {
	case m.jobChan <- job:
	default:
		m.logger.Warn().Str("id", rec.ID).Int("queue", cap(m.jobChan)).Msg("decrypt queue full, passing message through encrypted")
		m.undecrypted(rec, msg.Data)
		m.emitMessage(rec)
	}
}

func (m *Monitor) decode(rec *tetra.MessageRecord, data []byte) {
	msg := m.decoder.Decode(data)
	rec.Kind = msg.Kind.String()
	rec.Text = msg.Text
	rec.Encoding = string(msg.Encoding)
	rec.Format = msg.Format
	rec.Data = msg.Data
	if msg.Location != nil {
		rec.Location = &tetra.Position{Latitude: msg.Location.Latitude, Longitude: msg.Location.Longitude}
	}
}

// undecrypted marks rec as binary ciphertext.
func (m *Monitor) undecrypted(rec *tetra.MessageRecord, ciphertext []byte) {
	rec.Kind = sds.KindBinary.String()
	rec.Data = append([]byte(nil), ciphertext...)
}

func (m *Monitor) emitMessage(rec *tetra.MessageRecord) {
	m.mu.Lock()
	m.stats.Messages++
	if rec.Kind == sds.KindText.String() {
		m.stats.TextMessages++
	} else {
		m.stats.BinaryMessages++
	}
	m.recent = append(m.recent, rec)
	if len(m.recent) > m.opts.RecentMessages {
		m.recent = m.recent[len(m.recent)-m.opts.RecentMessages:]
	}
	m.mu.Unlock()

	m.metrics.messages.WithLabelValues(rec.Kind, strconv.FormatBool(rec.Encrypted)).Inc()

	ev := m.logger.Info().
		Str("id", rec.ID).
		Uint32("source", rec.Source).
		Uint32("destination", rec.Destination).
		Bool("encrypted", rec.Encrypted).
		Str("kind", rec.Kind)
	if rec.Format != "" {
		ev = ev.Str("format", rec.Format)
	}
	if rec.Text != "" {
		ev = ev.Str("encoding", rec.Encoding).Str("text", rec.Text)
	} else {
		ev = ev.Int("bytes", len(rec.Data))
	}
	if rec.Location != nil {
		ev = ev.Float64("latitude", rec.Location.Latitude).Float64("longitude", rec.Location.Longitude)
	}
	ev.Msg("message")

	skippedOutputs := 0
	for _, output := range m.opts.MessageOutputs {
		select {
		case output.Receive() <- rec:
			// We will not wait on blocked channels.
		default:
			skippedOutputs++
		}
	}
	if skippedOutputs > 0 {
		m.metrics.skippedOutputs.WithLabelValues("message").Add(float64(skippedOutputs))
	}

	go m.writeAPI.WritePoint(influxdb2.NewPoint("sds.message",
		map[string]string{
			"kind":      rec.Kind,
			"format":    rec.Format,
			"encrypted": strconv.FormatBool(rec.Encrypted),
		},
		map[string]interface{}{
			"bytes":           len(rec.Data),
			"fragments":       rec.Fragments,
			"score":           rec.Score,
			"skipped_outputs": skippedOutputs,
		}, rec.Timestamp))
}

func (m *Monitor) emitVoice(p frame.BurstPacket, c tetra.BurstContext, payload []byte) {
	rec := &tetra.VoiceRecord{
		Frame:     voice.Format(payload),
		Context:   c,
		Frequency: m.frequency(),
		Burst:     p.Index,
		Timestamp: p.Timestamp,
	}
	m.updateStats(func(s *tetra.Stats) { s.VoiceFrames++ })
	m.metrics.voiceFrames.Inc()

	skippedOutputs := 0
	for _, output := range m.opts.VoiceOutputs {
		select {
		case output.Receive() <- rec:
		default:
			skippedOutputs++
		}
	}
	if skippedOutputs > 0 {
		m.metrics.skippedOutputs.WithLabelValues("voice").Add(float64(skippedOutputs))
	}
}

// endSession drops everything still being reassembled. No partial message
// is emitted.
func (m *Monitor) endSession() {
	dropped := m.reassembler.Reset()
	bursts := m.assembler.Bursts()
	m.assembler.Reset()
	m.metrics.fragmentBuffers.Set(0)
	m.logger.Info().
		Str("session", m.sessionID).
		Int("bursts", bursts).
		Int("discarded_buffers", dropped).
		Msg("session ended")
}

func (m *Monitor) frequency() int {
	if m.current != nil && m.current.Frequency != 0 {
		return m.current.Frequency
	}
	return m.opts.Frequency
}

func (m *Monitor) updateStats(update func(s *tetra.Stats)) {
	m.mu.Lock()
	update(&m.stats)
	m.mu.Unlock()
}

// Stats returns a copy of the session counters.
func (m *Monitor) Stats() tetra.Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.stats
	if s.Network != nil {
		network := *s.Network
		s.Network = &network
	}
	if s.LastAssignment != nil {
		assignment := *s.LastAssignment
		s.LastAssignment = &assignment
	}
	return s
}

// RecentMessages returns the latest messages, oldest first.
func (m *Monitor) RecentMessages() []*tetra.MessageRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*tetra.MessageRecord(nil), m.recent...)
}

func (m *Monitor) Gatherer() prometheus.Gatherer {
	return m.registry
}
