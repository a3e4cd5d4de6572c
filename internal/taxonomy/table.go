package taxonomy

// Tag carries the bilingual display terms and search keywords for one
// canonical key. Keys use the flat "Category/Tag" scheme.
type Tag struct {
	Chinese  string
	English  string
	Keywords []string
}

type entry struct {
	Key string
	Tag Tag
}

// Category display order is fixed for the dashboard UI.
var categoryOrder = []string{
	"Perception",
	"Decision",
	"Motion Control",
	"Operation",
	"Learning",
	"Benchmark",
}

var categoryNames = map[string]string{
	"Perception":     "感知",
	"Decision":       "决策",
	"Motion Control": "运动控制",
	"Operation":      "操作",
	"Learning":       "学习",
	"Benchmark":      "基准",
}

// canonicalEntries is the flat six-category table. Insertion order is
// significant: Meta() and Tree() preserve it.
var canonicalEntries = []entry{
	{"Perception/3D Vision", Tag{"三维视觉", "3D Vision", []string{"3d vision", "point cloud", "depth estimation", "nerf"}}},
	{"Perception/Tactile Sensing", Tag{"触觉感知", "Tactile Sensing", []string{"tactile", "force sensing", "touch sensor"}}},
	{"Perception/SLAM", Tag{"即时定位与建图", "SLAM", []string{"slam", "localization", "mapping", "visual odometry"}}},
	{"Perception/Multimodal Perception", Tag{"多模态感知", "Multimodal Perception", []string{"multimodal", "sensor fusion", "vision-language"}}},
	{"Decision/Task Planning", Tag{"任务规划", "Task Planning", []string{"task planning", "planner", "pddl", "long-horizon"}}},
	{"Decision/Navigation", Tag{"导航", "Navigation", []string{"navigation", "path planning", "obstacle avoidance"}}},
	{"Decision/World Models", Tag{"世界模型", "World Models", []string{"world model", "dynamics model", "video prediction"}}},
	{"Motion Control/Locomotion", Tag{"运动步态", "Locomotion", []string{"locomotion", "quadruped", "bipedal", "gait", "humanoid"}}},
	{"Motion Control/Whole-Body Control", Tag{"全身控制", "Whole-Body Control", []string{"whole-body", "wbc", "balance control"}}},
	{"Motion Control/Dexterous Hands", Tag{"灵巧手", "Dexterous Hands", []string{"dexterous", "in-hand", "five-finger"}}},
	{"Operation/Manipulation", Tag{"机器人操作", "Manipulation", []string{"manipulation", "pick and place", "rearrangement"}}},
	{"Operation/Grasping", Tag{"抓取", "Grasping", []string{"grasp", "grasping", "suction"}}},
	{"Operation/Mobile Manipulation", Tag{"移动操作", "Mobile Manipulation", []string{"mobile manipulation", "fetch and carry"}}},
	{"Learning/Reinforcement Learning", Tag{"强化学习", "Reinforcement Learning", []string{"reinforcement learning", "rl", "policy gradient", "ppo"}}},
	{"Learning/Imitation Learning", Tag{"模仿学习", "Imitation Learning", []string{"imitation learning", "behavior cloning", "demonstration"}}},
	{"Learning/VLA Models", Tag{"视觉语言动作模型", "VLA Models", []string{"vla", "vision-language-action", "foundation model"}}},
	{"Learning/Sim-to-Real", Tag{"仿真到现实", "Sim-to-Real", []string{"sim-to-real", "sim2real", "domain randomization"}}},
	{"Benchmark/Simulators", Tag{"仿真平台", "Simulators", []string{"simulator", "isaac", "mujoco", "habitat"}}},
	{"Benchmark/Datasets", Tag{"数据集", "Datasets", []string{"dataset", "benchmark suite", "data collection"}}},
	{"Benchmark/Evaluation", Tag{"评测", "Evaluation", []string{"evaluation", "leaderboard", "success rate"}}},
}

// aliasEntries maps free-text category strings seen in upstream feeds
// to canonical keys. Lookups are case-folded before matching.
var aliasEntries = map[string]string{
	"cs.ro":            "Operation/Manipulation",
	"robot learning":   "Learning/Reinforcement Learning",
	"deep rl":          "Learning/Reinforcement Learning",
	"bc":               "Learning/Imitation Learning",
	"embodied qa":      "Perception/Multimodal Perception",
	"legged robots":    "Motion Control/Locomotion",
	"robotic grasping": "Operation/Grasping",
	"slam/vo":          "Perception/SLAM",
}

// legacyAliases accepts keys from the retired three-level scheme.
// They resolve to flat keys when the table is built with legacy
// acceptance enabled.
var legacyAliases = map[string]string{
	"感知/视觉/三维视觉":    "Perception/3D Vision",
	"感知/触觉/触觉传感":    "Perception/Tactile Sensing",
	"决策/规划/任务规划":    "Decision/Task Planning",
	"控制/运动/步态控制":    "Motion Control/Locomotion",
	"操作/抓取/通用抓取":    "Operation/Grasping",
	"学习/强化/强化学习":    "Learning/Reinforcement Learning",
	"学习/模仿/模仿学习":    "Learning/Imitation Learning",
	"基准/仿真/仿真平台":    "Benchmark/Simulators",
	"algorithm/learning/rl": "Learning/Reinforcement Learning",
}
