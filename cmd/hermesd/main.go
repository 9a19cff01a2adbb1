// Command hermesd runs the HERMES ARQ data-link daemon: the event loop,
// modem TX/RX workers, and the TCP control/data bridge, wired together per
// SPEC_FULL.md §1.1-§6. Grounded on the teacher's cmd/samoyed-appserver and
// cmd/direwolf main()s: parse flags, build the subsystem, run until
// signaled.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Rhizomatica/hermes-modem-sub000/internal/bridge"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/cli"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/core"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/corelog"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/event"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/fsm"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/modem"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/modem/audio"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/modem/codec/loopback"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/modem/decoder"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/modem/ptt"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/modetable"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/session"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/telemetry"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/timing"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/txqueue"
)

func main() {
	cfg, err := cli.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if cfg.ConfigPath != "" {
		if _, err := cli.LoadOverlay(cfg.ConfigPath, cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}

	if cfg.List {
		printModes()
		return
	}
	if cfg.ListCard {
		printSoundCards()
		return
	}

	level := corelog.ParseLevel(cfg.Verbose)
	arqLog := corelog.New(corelog.ComponentARQ, level, os.Stderr)
	modemLog := corelog.New(corelog.ComponentModem, level, os.Stderr)
	tcpLog := corelog.New(corelog.ComponentTCP, level, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exporter := telemetry.NewExporter()
	metrics := timing.NewMetrics(exporter.Registry)
	go func() {
		if err := exporter.Serve(ctx, fmt.Sprintf(":%d", cfg.BasePort+2)); err != nil {
			arqLog.Error("telemetry exporter exited", "err", err)
		}
	}()

	sess := session.New()
	rec := timing.NewRecorder(metrics, cfg.MyCall)
	queue := event.NewQueue(event.DefaultQueueCapacity)
	txq := txqueue.New(txqueue.DefaultCapacity)

	fsmCfg := fsm.NewConfig(cfg.MyCall)

	ctrl, err := bridge.ListenControl(fmt.Sprintf(":%d", cfg.BasePort), tcpLog)
	if err != nil {
		arqLog.Fatal("control listen failed", "err", err)
	}
	data, err := bridge.ListenData(fmt.Sprintf(":%d", cfg.BasePort+1), tcpLog)
	if err != nil {
		arqLog.Fatal("data listen failed", "err", err)
	}

	loop := core.NewLoop(fsmCfg, sess, queue, &effectSink{txq: txq, data: data, ctrl: ctrl, sess: sess, log: arqLog}, rec, arqLog, func() int64 {
		return time.Now().UnixMilli()
	})

	codec := loopback.New()
	var back audio.Backend
	if pab, err := audio.OpenPortAudio(); err == nil {
		back = pab
	} else {
		modemLog.Warn("falling back to loopback audio device", "err", err)
		back = audio.NewLoopbackBackend(1 << 16)
	}

	decoded := make(chan decoder.DecodedFrame, 64)
	dd := decoder.New(codec, decoded)
	dd.Run(ctx)

	var keyer ptt.Keyer = ptt.NullKeyer{}

	tx := &modem.TXWorker{Queue: txq, Events: queue, Status: ctrl.Status, Keyer: keyer, Audio: back, Codec: codec, Decode: dd, Rec: rec, Log: modemLog}
	rx := &modem.RXWorker{Audio: back, Decode: dd, Decoded: decoded, Queue: queue, Cfg: fsmCfg, Log: modemLog}

	go tx.Run(ctx)
	go rx.Run(ctx)

	go ctrl.Serve()
	go data.Serve()
	go pumpControlCommands(ctx, ctrl, queue, fsmCfg, sess)
	go pumpDataIngress(ctx, data, sess, queue, arqLog)

	arqLog.Info("hermesd ready", "call", cfg.MyCall, "base_port", cfg.BasePort)
	loop.Run(ctx)
}

// pumpControlCommands translates bridge.Command values into core events,
// the bridge-to-FSM half of SPEC_FULL.md §4.8's wiring. BUFFER/SN/BITRATE
// are synchronous queries answered straight from a Session Snapshot rather
// than routed through the event loop, matching Snapshot's documented
// purpose for exactly this kind of external read.
func pumpControlCommands(ctx context.Context, ctrl *bridge.ControlServer, queue *event.Queue, cfg *fsm.Config, sess *session.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-ctrl.Commands:
			switch cmd.Kind {
			case bridge.CmdMyCall:
				cfg.SetLocalCall(cmd.Call)
			case bridge.CmdListen:
				cfg.SetListening(cmd.On)
				if cmd.On {
					queue.Push(event.Event{ID: event.EvAppListen})
				} else {
					queue.Push(event.Event{ID: event.EvAppStopListen})
				}
			case bridge.CmdConnect:
				queue.Push(event.Event{ID: event.EvAppConnect, RemoteCall: cmd.Dst})
			case bridge.CmdDisconnect:
				queue.Push(event.Event{ID: event.EvAppDisconnect})
			case bridge.CmdBuffer:
				snap := sess.Snapshot()
				sendStatus(ctrl, bridge.StatusBuffer(snap.TxBacklog))
			case bridge.CmdSN:
				snap := sess.Snapshot()
				sendStatus(ctrl, bridge.StatusSN(float64(snap.LocalSNRx10)/10))
			case bridge.CmdBitrate:
				snap := sess.Snapshot()
				t := modetable.Lookup(snap.PayloadMode)
				bps := int(float64(t.PayloadBytes*8) / t.FrameDuration.Seconds())
				sendStatus(ctrl, bridge.StatusBitrate(snap.SpeedIndex, bps))
			}
		}
	}
}

func sendStatus(ctrl *bridge.ControlServer, line string) {
	select {
	case ctrl.Status <- line:
	default:
	}
}

// pumpDataIngress moves bytes a TCP data client writes into the outbound
// ring and tells the event loop there is more to send, the data-socket
// half of SPEC_FULL.md §4.8's wiring (spec §4.7's "a TCP client submits
// octets"). sess.Out is written directly (it synchronizes internally);
// no other Session field is touched from this goroutine.
func pumpDataIngress(ctx context.Context, data *bridge.DataServer, sess *session.Session, queue *event.Queue, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case chunk := <-data.Outbound:
			if _, err := sess.Out.Write(chunk); err != nil {
				logger.Warn("outbound buffer full, dropping chunk", "err", err, "len", len(chunk))
				continue
			}
			queue.Push(event.Event{ID: event.EvAppDataReady})
		}
	}
}

func printModes() {
	for _, m := range []modetable.Mode{modetable.DATAC13, modetable.DATAC4, modetable.DATAC3, modetable.DATAC1} {
		t := modetable.Lookup(m)
		fmt.Printf("%-8s frame=%-8s tx_period=%-6s ack_timeout=%-6s retry=%-6s payload=%dB\n",
			m, t.FrameDuration, t.TXPeriod, t.AckTimeout, t.RetryInterval, t.PayloadBytes)
	}
}

func printSoundCards() {
	cards, err := cli.ListSoundCards()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, c := range cards {
		fmt.Printf("%s\t%s\n", c.Sysname, c.Name)
	}
}

// effectSink adapts fsm.Effect values into txqueue.Action entries, data/
// control socket writes, and log lines; it is the Effects implementation
// core.Loop calls into. It runs on the event-loop goroutine, so the only
// Session access it performs is Snapshot, same as any other outside reader.
type effectSink struct {
	txq  *txqueue.Queue
	data *bridge.DataServer
	ctrl *bridge.ControlServer
	sess *session.Session
	log  *log.Logger
}

func (s *effectSink) Apply(eff fsm.Effect) {
	if act, ok := core.ActionFor(eff); ok {
		if err := s.txq.Enqueue(act); err != nil {
			s.log.Warn("tx queue full, dropping action", "err", err)
		}
		return
	}
	switch eff.Kind {
	case fsm.EffectDeliverRx:
		select {
		case s.data.Inbound <- eff.Payload:
		default:
			s.log.Warn("data inbound queue full, dropping payload", "len", len(eff.Payload))
		}
	case fsm.EffectNewSession:
		snap := s.sess.Snapshot()
		sendStatus(s.ctrl, bridge.StatusConnected(snap.LocalCall, snap.RemoteCall))
	case fsm.EffectSessionClosed:
		sendStatus(s.ctrl, bridge.StatusDisconnected)
	}
}
