package broadcast

import (
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func startService(t *testing.T) *BroadcastService {
	t.Helper()
	b := NewBroadcastService()
	var wg sync.WaitGroup
	wg.Add(1)
	go b.Start(&wg)
	t.Cleanup(func() {
		b.Close()
		wg.Wait()
	})
	return b
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case e, ok := <-c.Send:
		if !ok {
			t.Fatal("通道已关闭")
		}
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("等待事件超时")
	}
	return Event{}
}

func TestPublishFanOut(t *testing.T) {
	b := startService(t)
	c1 := b.RegisterClient(nil)
	c2 := b.RegisterClient(nil)

	b.SendProgress("s1", "audio", 2, 5, "合成中")
	for _, c := range []*Client{c1, c2} {
		e := receive(t, c)
		if e.Session != "s1" || e.Type != TypeProgress || e.Current != 2 || e.Total != 5 {
			t.Errorf("事件 = %+v", e)
		}
		if e.Timestamp == "" {
			t.Error("时间戳为空")
		}
	}
}

func TestUnregisterClosesChannel(t *testing.T) {
	b := startService(t)
	c := b.RegisterClient(nil)
	b.UnregisterClient(c)

	select {
	case _, ok := <-c.Send:
		if ok {
			t.Error("注销后不应再收到消息")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("注销后通道未关闭")
	}
}

func TestPublishNilService(t *testing.T) {
	var b *BroadcastService
	b.Publish(Event{Message: "ignored"})
	b.SendLog("x", "ignored")
}

func TestRegisterAfterClose(t *testing.T) {
	b := NewBroadcastService()
	b.Close()
	c := b.RegisterClient(nil)
	if _, ok := <-c.Send; ok {
		t.Error("关闭后注册的客户端应立即关闭")
	}
}

func TestTeeLogger(t *testing.T) {
	b := startService(t)
	c := b.RegisterClient(nil)

	logger := Tee(zap.NewNop(), "render", b)
	logger.Debug("不会广播")
	logger.Warn("背景缺失", zap.String("file", "bg.png"))

	e := receive(t, c)
	if e.Step != "render" || e.Type != TypeError {
		t.Errorf("事件 = %+v", e)
	}
	if !strings.Contains(e.Message, "背景缺失") || !strings.Contains(e.Message, "bg.png") {
		t.Errorf("消息内容 = %q", e.Message)
	}
}
