package training

import (
	"strconv"
	"time"
)

// Request mirrors the trainer CLI surface: every field maps to exactly one
// flag of the external training command.
type Request struct {
	// Dataset configuration
	DatasetRepoID   string `json:"dataset_repo_id" binding:"required"`
	DatasetRevision string `json:"dataset_revision,omitempty"`
	DatasetRoot     string `json:"dataset_root,omitempty"`
	DatasetEpisodes []int  `json:"dataset_episodes,omitempty"`

	// Policy configuration
	PolicyType   string `json:"policy_type,omitempty"`
	PolicyDevice string `json:"policy_device,omitempty"`
	PolicyUseAMP bool   `json:"policy_use_amp,omitempty"`

	// Core training parameters
	Steps      int  `json:"steps,omitempty"`
	BatchSize  int  `json:"batch_size,omitempty"`
	Seed       *int `json:"seed,omitempty"`
	NumWorkers int  `json:"num_workers,omitempty"`

	// Logging and checkpointing
	LogFreq        int  `json:"log_freq,omitempty"`
	SaveFreq       int  `json:"save_freq,omitempty"`
	EvalFreq       int  `json:"eval_freq,omitempty"`
	SaveCheckpoint bool `json:"save_checkpoint,omitempty"`

	// Output configuration
	OutputDir string `json:"output_dir,omitempty"`
	Resume    bool   `json:"resume,omitempty"`
	JobName   string `json:"job_name,omitempty"`

	// Weights & Biases
	WandbEnable          bool   `json:"wandb_enable,omitempty"`
	WandbProject         string `json:"wandb_project,omitempty"`
	WandbEntity          string `json:"wandb_entity,omitempty"`
	WandbMode            string `json:"wandb_mode,omitempty"`
	WandbDisableArtifact bool   `json:"wandb_disable_artifact,omitempty"`

	// Environment and evaluation
	EnvType       string `json:"env_type,omitempty"`
	EnvTask       string `json:"env_task,omitempty"`
	EvalNEpisodes int    `json:"eval_n_episodes,omitempty"`
	EvalBatchSize int    `json:"eval_batch_size,omitempty"`

	// Optimizer
	OptimizerType         string   `json:"optimizer_type,omitempty"`
	OptimizerLR           *float64 `json:"optimizer_lr,omitempty"`
	OptimizerWeightDecay  *float64 `json:"optimizer_weight_decay,omitempty"`
	OptimizerGradClipNorm *float64 `json:"optimizer_grad_clip_norm,omitempty"`
}

// withDefaults fills the zero fields the trainer CLI would otherwise reject.
func (r Request) withDefaults(outputDir string) Request {
	if r.PolicyType == "" {
		r.PolicyType = "act"
	}
	if r.PolicyDevice == "" {
		r.PolicyDevice = "cuda"
	}
	if r.Steps <= 0 {
		r.Steps = 10000
	}
	if r.BatchSize <= 0 {
		r.BatchSize = 8
	}
	if r.NumWorkers <= 0 {
		r.NumWorkers = 4
	}
	if r.LogFreq <= 0 {
		r.LogFreq = 250
	}
	if r.SaveFreq <= 0 {
		r.SaveFreq = 1000
	}
	if r.EvalNEpisodes <= 0 {
		r.EvalNEpisodes = 10
	}
	if r.EvalBatchSize <= 0 {
		r.EvalBatchSize = 50
	}
	if r.OutputDir == "" {
		r.OutputDir = outputDir
	}
	return r
}

// args assembles the trainer CLI argument list.
func (r Request) args() []string {
	args := []string{
		"--dataset.repo_id", r.DatasetRepoID,
	}
	if r.DatasetRevision != "" {
		args = append(args, "--dataset.revision", r.DatasetRevision)
	}
	if r.DatasetRoot != "" {
		args = append(args, "--dataset.root", r.DatasetRoot)
	}
	if len(r.DatasetEpisodes) > 0 {
		args = append(args, "--dataset.episodes")
		for _, ep := range r.DatasetEpisodes {
			args = append(args, strconv.Itoa(ep))
		}
	}

	args = append(args,
		"--policy.type", r.PolicyType,
		"--policy.device", r.PolicyDevice,
		"--steps", strconv.Itoa(r.Steps),
		"--batch_size", strconv.Itoa(r.BatchSize),
		"--num_workers", strconv.Itoa(r.NumWorkers),
	)
	if r.PolicyUseAMP {
		args = append(args, "--policy.use_amp")
	}
	if r.Seed != nil {
		args = append(args, "--seed", strconv.Itoa(*r.Seed))
	}

	args = append(args,
		"--log_freq", strconv.Itoa(r.LogFreq),
		"--save_freq", strconv.Itoa(r.SaveFreq),
		"--eval_freq", strconv.Itoa(r.EvalFreq),
	)
	if r.SaveCheckpoint {
		args = append(args, "--save_checkpoint")
	}

	args = append(args, "--output_dir", r.OutputDir)
	if r.Resume {
		args = append(args, "--resume")
	}
	if r.JobName != "" {
		args = append(args, "--job_name", r.JobName)
	}

	if r.WandbEnable {
		args = append(args, "--wandb.enable")
		if r.WandbProject != "" {
			args = append(args, "--wandb.project", r.WandbProject)
		}
		if r.WandbEntity != "" {
			args = append(args, "--wandb.entity", r.WandbEntity)
		}
		if r.WandbMode != "" {
			args = append(args, "--wandb.mode", r.WandbMode)
		}
		if r.WandbDisableArtifact {
			args = append(args, "--wandb.disable_artifact")
		}
	}

	if r.EnvType != "" {
		args = append(args, "--env.type", r.EnvType)
	}
	if r.EnvTask != "" {
		args = append(args, "--env.task", r.EnvTask)
	}
	args = append(args,
		"--eval.n_episodes", strconv.Itoa(r.EvalNEpisodes),
		"--eval.batch_size", strconv.Itoa(r.EvalBatchSize),
	)

	if r.OptimizerType != "" {
		args = append(args, "--optimizer.type", r.OptimizerType)
	}
	if r.OptimizerLR != nil {
		args = append(args, "--optimizer.lr", strconv.FormatFloat(*r.OptimizerLR, 'g', -1, 64))
	}
	if r.OptimizerWeightDecay != nil {
		args = append(args, "--optimizer.weight_decay", strconv.FormatFloat(*r.OptimizerWeightDecay, 'g', -1, 64))
	}
	if r.OptimizerGradClipNorm != nil {
		args = append(args, "--optimizer.grad_clip_norm", strconv.FormatFloat(*r.OptimizerGradClipNorm, 'g', -1, 64))
	}

	return args
}

// Status is a snapshot of the training job.
type Status struct {
	Active      bool            `json:"training_active"`
	CurrentStep int             `json:"current_step"`
	TotalSteps  int             `json:"total_steps"`
	CurrentLoss *float64        `json:"current_loss,omitempty"`
	CurrentLR   *float64        `json:"current_lr,omitempty"`
	GradNorm    *float64        `json:"grad_norm,omitempty"`
	ETASeconds  *float64        `json:"eta_seconds,omitempty"`
	Controls    map[string]bool `json:"available_controls"`
}

// LogEntry is one captured trainer output line.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}
