package main

import (
	"fmt"
	"io"
	"net/url"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/vitalvas/mqttlite"
)

// printer renders session events for a terminal.
type printer struct {
	w io.Writer

	topic *color.Color
	meta  *color.Color
	ok    *color.Color
	fail  *color.Color
	info  *color.Color
}

func newPrinter(w io.Writer, noColor bool) *printer {
	p := &printer{
		w:     w,
		topic: color.New(color.FgCyan, color.Bold),
		meta:  color.New(color.FgHiBlack),
		ok:    color.New(color.FgGreen),
		fail:  color.New(color.FgRed, color.Bold),
		info:  color.New(color.FgBlue),
	}

	if noColor {
		for _, c := range []*color.Color{p.topic, p.meta, p.ok, p.fail, p.info} {
			c.DisableColor()
		}
	}

	return p
}

func (p *printer) connecting(broker string, proxy *url.URL) {
	if proxy != nil {
		fmt.Fprintf(p.w, "%s %s via %s\n", p.info.Sprint("connecting"), broker, proxy.Redacted())
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.info.Sprint("connecting"), broker)
}

func (p *printer) event(e mqttlite.Event) {
	switch ev := e.(type) {
	case *mqttlite.ConnectEvent:
		if ev.Status.Accepted() {
			fmt.Fprintf(p.w, "%s\n", p.ok.Sprint("connected"))
			return
		}
		fmt.Fprintf(p.w, "%s %s\n", p.fail.Sprint("refused"), ev.Status)
	case *mqttlite.SubscribeEvent:
		if ev.Err != nil {
			fmt.Fprintf(p.w, "%s %s: %v\n", p.fail.Sprint("subscribe failed"), ev.Topic, ev.Err)
			return
		}
		fmt.Fprintf(p.w, "%s %s %s\n", p.ok.Sprint("subscribed"), p.topic.Sprint(ev.Topic),
			p.meta.Sprintf("granted=%d", ev.GrantedQoS))
	case *mqttlite.UnsubscribeEvent:
		if ev.Err != nil {
			fmt.Fprintf(p.w, "%s %s: %v\n", p.fail.Sprint("unsubscribe failed"), ev.Topic, ev.Err)
			return
		}
		fmt.Fprintf(p.w, "%s %s\n", p.ok.Sprint("unsubscribed"), p.topic.Sprint(ev.Topic))
	case *mqttlite.PublishEvent:
		if ev.Err != nil {
			fmt.Fprintf(p.w, "%s %s: %v\n", p.fail.Sprint("publish failed"), ev.Topic, ev.Err)
			return
		}
		fmt.Fprintf(p.w, "%s %s %s\n", p.ok.Sprint("published"), p.topic.Sprint(ev.Topic),
			p.meta.Sprintf("qos=%d id=%d", ev.QoS, ev.PacketID))
	case *mqttlite.PublishRecvEvent:
		p.message(ev)
	case *mqttlite.KeepAliveEvent:
		fmt.Fprintf(p.w, "%s\n", p.meta.Sprintf("pong rtt=%s", ev.RTT))
	case *mqttlite.DisconnectEvent:
		if ev.Err != nil {
			fmt.Fprintf(p.w, "%s %v\n", p.fail.Sprint("disconnected"), ev.Err)
			return
		}
		fmt.Fprintf(p.w, "%s\n", p.info.Sprint("disconnected"))
	}
}

func (p *printer) message(ev *mqttlite.PublishRecvEvent) {
	flags := fmt.Sprintf("qos=%d", ev.QoS)
	if ev.Retain {
		flags += " retain"
	}
	if ev.DUP {
		flags += " dup"
	}

	fmt.Fprintf(p.w, "%s %s %s\n", p.topic.Sprint(ev.Topic), p.meta.Sprint(flags), payloadText(ev.Payload))
}

// payloadText prints UTF-8 payloads as is and binary ones in hex.
func payloadText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return fmt.Sprintf("0x%x", b)
}
