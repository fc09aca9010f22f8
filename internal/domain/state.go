package domain

// Status は、生成処理の状態を表します
type Status int

const (
	StatusIdle Status = iota
	StatusInFlight
	StatusSucceeded
	StatusFailed
)

var statusNames = []string{"idle", "in_flight", "succeeded", "failed"}

// String はStatusの名前を返します
func (s Status) String() string {
	if int(s) >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "idle"
}

// Phase は、画面全体の状態を合成したものです
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseImageOnly
	PhaseReady
	PhaseGenerating
	PhaseDone
	PhaseError
)

var phaseNames = []string{"empty", "image_only", "ready", "generating", "done", "error"}

// String はPhaseの名前を返します
func (p Phase) String() string {
	if int(p) >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "empty"
}

// State は、コントローラーが所有するアプリケーション状態です
// Seq は最後に発行した生成リクエストの番号で、古い応答の破棄に使います
// Superseded は、生成中に元画像が新しくアップロードされ、実行中の結果を破棄すべきことを示します
type State struct {
	Image      *UploadedImage
	Prompt     string
	Generated  GeneratedImage
	Loading    bool
	Error      string
	Status     Status
	Seq        uint64
	Superseded bool
}

// HasImage は、元画像が設定されているかどうかを返します
func (s State) HasImage() bool {
	return s.Image != nil
}

// CanGenerate は、生成操作が可能かどうかを返します
func (s State) CanGenerate() bool {
	return s.Image != nil && s.Prompt != "" && !s.Loading
}

// Phase は、各フラグから合成した画面状態を返します
func (s State) Phase() Phase {
	switch {
	case s.Loading:
		return PhaseGenerating
	case s.Error != "":
		return PhaseError
	case !s.Generated.IsEmpty():
		return PhaseDone
	case s.Image != nil && s.Prompt != "":
		return PhaseReady
	case s.Image != nil:
		return PhaseImageOnly
	default:
		return PhaseEmpty
	}
}

// Clone は、画像ポインタを複製した状態のコピーを返します
func (s State) Clone() State {
	if s.Image != nil {
		img := *s.Image
		s.Image = &img
	}
	return s
}

// Event は、状態遷移を引き起こすイベントです
type Event interface {
	isEvent()
}

// ImageUploaded は、新しい画像がアップロードされたことを表します
type ImageUploaded struct{ Image UploadedImage }

// ImageRemoved は、画像が削除されたことを表します
type ImageRemoved struct{}

// PromptChanged は、プロンプトが変更されたことを表します
type PromptChanged struct{ Prompt string }

// GenerationRejected は、前提条件を満たさずに生成が要求されたことを表します
type GenerationRejected struct{}

// GenerationStarted は、番号Seqの生成が開始されたことを表します
type GenerationStarted struct{ Seq uint64 }

// GenerationSucceeded は、番号Seqの生成が成功したことを表します
type GenerationSucceeded struct {
	Seq   uint64
	Image GeneratedImage
}

// GenerationFailed は、番号Seqの生成が失敗したことを表します
type GenerationFailed struct {
	Seq     uint64
	Message string
}

// Reset は、状態を初期化します
type Reset struct{}

func (ImageUploaded) isEvent()       {}
func (ImageRemoved) isEvent()        {}
func (PromptChanged) isEvent()       {}
func (GenerationRejected) isEvent()  {}
func (GenerationStarted) isEvent()   {}
func (GenerationSucceeded) isEvent() {}
func (GenerationFailed) isEvent()    {}
func (Reset) isEvent()               {}

// Reduce は、(状態, イベント) から新しい状態を計算する純粋関数です
func Reduce(s State, e Event) State {
	s = s.Clone()

	switch ev := e.(type) {
	case ImageUploaded:
		img := ev.Image
		s.Image = &img
		s.Generated = ""
		s.Error = ""
		if s.Loading {
			s.Superseded = true
		} else {
			s.Status = StatusIdle
		}

	case ImageRemoved:
		// 実行中の生成は送信済みの画像に対するものなので、結果はそのまま受け取る
		s.Image = nil

	case PromptChanged:
		s.Prompt = ev.Prompt

	case GenerationRejected:
		s.Error = ValidationMessage
		if !s.Loading {
			s.Status = StatusFailed
		}

	case GenerationStarted:
		if s.Loading {
			return s
		}
		s.Seq = ev.Seq
		s.Superseded = false
		s.Loading = true
		s.Error = ""
		s.Generated = ""
		s.Status = StatusInFlight

	case GenerationSucceeded:
		if !s.Loading || ev.Seq != s.Seq {
			return s
		}
		s.Loading = false
		if s.Superseded {
			s.Superseded = false
			s.Status = StatusIdle
			return s
		}
		s.Generated = ev.Image
		s.Status = StatusSucceeded

	case GenerationFailed:
		if !s.Loading || ev.Seq != s.Seq {
			return s
		}
		s.Loading = false
		if s.Superseded {
			s.Superseded = false
			s.Status = StatusIdle
			return s
		}
		s.Generated = ""
		s.Error = ev.Message
		if s.Error == "" {
			s.Error = UnknownGenerationMessage
		}
		s.Status = StatusFailed

	case Reset:
		// 発行済みの番号は維持し、リセット前の応答が適用されないようにする
		return State{Seq: s.Seq}
	}

	return s
}
