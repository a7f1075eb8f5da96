// Package watcher 提供"目录变更 -> 触发外部构建"的监控循环。
//
// 核心特点：
//   - 周期性地对一组监控目录生成快照（Snapshot：文件绝对路径 -> 修改时间 + 大小）
//   - 快照比较是唯一的变更判定依据，不计算文件内容哈希
//   - 遍历时按目录名整棵剪枝（Excluder），与被排除目录的大小无关
//   - 按"距上次构建的墙钟时间"做防抖（Debounce），避免构建风暴
//   - 构建通过 Builder 接口执行，默认实现 CommandBuilder 启动外部进程并阻塞等待
//   - 可选地使用 fsnotify 事件提前唤醒轮询，判定依据仍然是快照比较
//
// 注意：
//   - 监控循环是单线程的：同一时刻最多只有一个构建在运行
//   - 构建失败不会停止循环，只会更新防抖时间戳并在控制台输出失败信息
//   - 正在运行的构建不会被中断，中断信号在下一个检查点才会被处理
//   - 快照只保存在内存中，进程重启后第一份快照即为基准，不会触发构建
//
// 推荐使用方式：
//  1. 通过 DefaultBuildConfig 得到构建配置并创建 CommandBuilder
//  2. 配置 ConfigWatcher，通过 NewWatcher 创建 Watcher
//  3. 调用 Run(ctx) 开始监控，取消 ctx 即停止
//
// 并发安全：
//   - Watcher 不是并发安全的，它的状态（上一份快照、上次构建时间）只属于运行循环本身
package watcher
