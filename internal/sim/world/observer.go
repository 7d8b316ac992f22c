package world

import (
	"encoding/json"

	"github.com/BinaryBen1/virus-simulation/internal/observerproto"
	"github.com/BinaryBen1/virus-simulation/internal/sim/encoding"
	"github.com/BinaryBen1/virus-simulation/internal/sim/epidemic"
)

// ObserverJoinRequest registers a read-only observer session. TICK messages
// are delivered to TickOut; a slow reader only ever sees the latest one.
//
// All observer state is maintained by the stepping goroutine.
type ObserverJoinRequest struct {
	SessionID     string
	TickOut       chan []byte
	IncludeAgents bool
	EveryTicks    int
}

// ObserverSubscribeRequest updates an existing observer session.
type ObserverSubscribeRequest struct {
	SessionID     string
	IncludeAgents bool
	EveryTicks    int
}

type observerClient struct {
	id            string
	tickOut       chan []byte
	includeAgents bool
	everyTicks    uint64
}

func (w *World) ObserverJoin() chan<- ObserverJoinRequest           { return w.observerJoin }
func (w *World) ObserverSubscribe() chan<- ObserverSubscribeRequest { return w.observerSub }
func (w *World) ObserverLeave() chan<- string                       { return w.observerLeave }

func everyTicks(n int) uint64 {
	if n < 1 {
		return 1
	}
	return uint64(n)
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.TickOut == nil {
		return
	}
	// The loop selects among its channels at random, so a leave can be
	// handled before the join it follows.
	if _, gone := w.observerGone[req.SessionID]; gone {
		delete(w.observerGone, req.SessionID)
		return
	}
	w.observers[req.SessionID] = &observerClient{
		id:            req.SessionID,
		tickOut:       req.TickOut,
		includeAgents: req.IncludeAgents,
		everyTicks:    everyTicks(req.EveryTicks),
	}
	w.logger.Printf("observer %s joined (agents=%v every=%d)", req.SessionID, req.IncludeAgents, everyTicks(req.EveryTicks))
}

func (w *World) handleObserverSubscribe(req ObserverSubscribeRequest) {
	c := w.observers[req.SessionID]
	if c == nil {
		return
	}
	c.includeAgents = req.IncludeAgents
	c.everyTicks = everyTicks(req.EveryTicks)
}

func (w *World) handleObserverLeave(id string) {
	if _, ok := w.observers[id]; ok {
		delete(w.observers, id)
		w.logger.Printf("observer %s left", id)
		return
	}
	if id != "" {
		w.observerGone[id] = struct{}{}
	}
}

// drainObserverRequests applies pending observer requests without blocking.
func (w *World) drainObserverRequests() {
	for {
		select {
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case req := <-w.observerSub:
			w.handleObserverSubscribe(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		default:
			return
		}
	}
}

func (w *World) publishObservers(nowTick uint64, counts epidemic.Counts, newInfections int) {
	if len(w.observers) == 0 {
		return
	}
	var plain, full []byte
	for _, c := range w.observers {
		if nowTick%c.everyTicks != 0 {
			continue
		}
		if c.includeAgents {
			if full == nil {
				full = w.marshalTick(nowTick, counts, newInfections, true)
			}
			sendLatest(c.tickOut, full)
			continue
		}
		if plain == nil {
			plain = w.marshalTick(nowTick, counts, newInfections, false)
		}
		sendLatest(c.tickOut, plain)
	}
}

func (w *World) marshalTick(nowTick uint64, counts epidemic.Counts, newInfections int, agents bool) []byte {
	msg := observerproto.TickMsg{
		Type:            "TICK",
		ProtocolVersion: observerproto.Version,
		Tick:            nowTick,
		Susceptible:     counts.Susceptible,
		Infected:        counts.Infected,
		Infectious:      counts.Infectious,
		Removed:         counts.Removed,
		NewInfections:   newInfections,
	}
	if agents {
		msg.Agents = make([]observerproto.AgentState, len(w.agents))
		for i, a := range w.agents {
			p := w.engine.Position(a.Handle)
			msg.Agents[i] = observerproto.AgentState{
				ID:     i,
				Pos:    [2]float64{p.X, p.Y},
				Status: w.pop.Status(i).String(),
				Dest:   a.Dest,
			}
		}
	}
	b, err := json.Marshal(msg)
	if err != nil {
		w.logger.Printf("observer tick marshal: %v", err)
		return nil
	}
	return b
}

// Bootstrap describes the static side of the run for observers. The map and
// destinations never change after New, so it is safe from any goroutine.
func (w *World) Bootstrap() observerproto.BootstrapResponse {
	dests := make([][2]int, len(w.dests))
	for i, d := range w.dests {
		dests[i] = [2]int{d.X, d.Y}
	}
	return observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		RunID:           w.cfg.ID,
		Tick:            w.CurrentTick(),
		RunParams: observerproto.RunParams{
			MapSize:       w.cfg.MapSize,
			TickRateHz:    w.cfg.TickRateHz,
			Seed:          w.cfg.Seed,
			Population:    w.cfg.Population,
			InfectionProb: w.cfg.InfectionProb,
			AgentRadius:   w.cfg.Motion.AgentRadius,
		},
		Grid: observerproto.GridBlob{
			Size:     w.grid.Size(),
			Encoding: encoding.Name,
			Data:     encoding.EncodeRLE(w.grid.Codes()),
		},
		Destinations: dests,
		FieldSource:  w.fieldSource,
	}
}

func sendLatest(ch chan []byte, b []byte) {
	if b == nil {
		return
	}
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
