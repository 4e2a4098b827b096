// Package sigchan 提供不携带数据的事件通知 channel，
// 引擎用它接收"立即执行一轮"之类的外部催促。
package sigchan

// Chan 非阻塞信号 channel
type Chan struct {
	c chan struct{}
}

// New 创建信号 channel，bufferSize 决定可积压的信号数
func New(bufferSize int) *Chan {
	return &Chan{
		c: make(chan struct{}, bufferSize),
	}
}

// Emit 发送信号；channel 已满时直接丢弃，发送方永不阻塞
func (c *Chan) Emit() {
	select {
	case c.c <- struct{}{}:
	default:
	}
}

// C 返回底层 channel，供 select 使用
func (c *Chan) C() <-chan struct{} {
	return c.c
}
