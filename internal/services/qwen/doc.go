// Package qwen talks to the DashScope Qwen-VL multimodal API to describe the
// subject of the reference images. A deterministic Mock stands in when runs
// are offline.
package qwen
