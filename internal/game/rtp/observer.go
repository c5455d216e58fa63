package rtp

// StepObserver 步进观察者接口
// 控制器自身不做任何进程级日志；需要逐步追踪时由嵌入方显式注入
type StepObserver interface {
	// OnStep 每完成一次StepSpin后回调
	OnStep(trace StepTrace)
}

// NopObserver 空观察者
type NopObserver struct{}

// OnStep 空实现
func (NopObserver) OnStep(trace StepTrace) {}

// FuncObserver 函数适配器
type FuncObserver func(trace StepTrace)

// OnStep 调用底层函数
func (f FuncObserver) OnStep(trace StepTrace) {
	f(trace)
}
