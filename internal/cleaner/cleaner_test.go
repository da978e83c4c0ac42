package cleaner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"productradar/internal/signal"
)

type fakeCompleter struct {
	calls   int
	prompts []string
	reply   func(prompt string) (string, error)
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.reply(prompt)
}

func TestAnthropicCleaner_RewritesAndDrops(t *testing.T) {
	fc := &fakeCompleter{reply: func(string) (string, error) {
		return "```json\n" + `[
			{"index":0,"name":"Sunset Lamp","relevant":true,"confidence":0.93},
			{"index":1,"name":null,"relevant":false,"confidence":0.2}
		]` + "\n```", nil
	}}
	c := NewAnthropicCleaner(fc, 10, nil)

	in := []signal.Event{
		{Source: "tiktok", SignalType: "tiktok_popularity", RawProductName: "obsessed w this sunset lamp 🌅 #tiktokmademebuyit", Value: 5000},
		{Source: "reddit", SignalType: "upvote_velocity", RawProductName: "my dog learned to skateboard", Value: 80},
		{Source: "google_trends", SignalType: "search_velocity", RawProductName: "sunset lamp", Value: 900},
	}
	out, err := c.CleanNames(context.Background(), in)
	if err != nil {
		t.Fatalf("CleanNames: %v", err)
	}
	if fc.calls != 1 {
		t.Fatalf("calls=%d want=1", fc.calls)
	}
	if strings.Contains(fc.prompts[0], "google_trends") {
		t.Fatalf("google_trends must bypass the model: %s", fc.prompts[0])
	}
	if len(out) != 2 {
		t.Fatalf("len(out)=%d want=2", len(out))
	}
	var tiktok signal.Event
	for _, ev := range out {
		if ev.Source == "tiktok" {
			tiktok = ev
		}
	}
	if tiktok.RawProductName != "Sunset Lamp" {
		t.Fatalf("name=%q", tiktok.RawProductName)
	}
	if tiktok.Metadata["original_name"] != in[0].RawProductName {
		t.Fatalf("original name not kept: %v", tiktok.Metadata)
	}
	if in[0].RawProductName == "Sunset Lamp" {
		t.Fatalf("input slice was mutated")
	}
}

func TestAnthropicCleaner_ErrorPassesBatchThrough(t *testing.T) {
	replies := []string{"not json at all", ""}
	for _, reply := range replies {
		fc := &fakeCompleter{reply: func(string) (string, error) {
			if reply == "" {
				return "", errors.New("rate limited")
			}
			return reply, nil
		}}
		c := NewAnthropicCleaner(fc, 10, nil)
		in := []signal.Event{
			{Source: "reddit", SignalType: "upvote_velocity", RawProductName: "anyone tried the neck fan?", Value: 10},
		}
		out, err := c.CleanNames(context.Background(), in)
		if err != nil {
			t.Fatalf("CleanNames: %v", err)
		}
		if len(out) != 1 || out[0].RawProductName != in[0].RawProductName {
			t.Fatalf("batch not passed through: %+v", out)
		}
	}
}

func TestAnthropicCleaner_Batches(t *testing.T) {
	fc := &fakeCompleter{reply: func(string) (string, error) { return "[]", nil }}
	c := NewAnthropicCleaner(fc, 2, nil)
	in := make([]signal.Event, 5)
	for i := range in {
		in[i] = signal.Event{Source: "tiktok", SignalType: "tiktok_popularity", RawProductName: "cloud slides", Value: 1}
	}
	out, err := c.CleanNames(context.Background(), in)
	if err != nil {
		t.Fatalf("CleanNames: %v", err)
	}
	if fc.calls != 3 {
		t.Fatalf("calls=%d want=3", fc.calls)
	}
	if len(out) != 5 {
		t.Fatalf("unanswered items must be kept: len=%d", len(out))
	}
}

func TestApplyExtractionsWithoutIndex(t *testing.T) {
	name := "Ice Roller"
	batch := []signal.Event{
		{Source: "reddit", RawProductName: "ice roller changed my mornings"},
		{Source: "reddit", RawProductName: "random meme"},
	}
	out := applyExtractions(batch, []extraction{{Name: &name, Relevant: true}, {Relevant: false}})
	if len(out) != 1 || out[0].RawProductName != "Ice Roller" {
		t.Fatalf("out=%+v", out)
	}
}

func TestPassthrough(t *testing.T) {
	in := []signal.Event{{Source: "tiktok", RawProductName: "x"}}
	out, err := Passthrough{}.CleanNames(context.Background(), in)
	if err != nil || len(out) != 1 {
		t.Fatalf("out=%v err=%v", out, err)
	}
}
