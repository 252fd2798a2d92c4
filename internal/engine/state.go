package engine

import "errors"

// State는 엔진의 실행 상태입니다
type State int32

const (
	Stopped      State = iota // 정지 (초기 상태)
	Running                   // 사이클 실행 중
	ShuttingDown              // 정지 요청됨, 루프 종료 대기
)

// String은 상태 이름을 반환합니다
func (s State) String() string {
	switch s {
	case Stopped:
		return "STOPPED"
	case Running:
		return "RUNNING"
	case ShuttingDown:
		return "SHUTTING_DOWN"
	default:
		return "UNKNOWN"
	}
}

// ErrAlreadyRunning은 정지 상태가 아닌 엔진을 시작하려 할 때 반환됩니다
var ErrAlreadyRunning = errors.New("엔진이 이미 실행 중입니다")
